/*
config.go - Server configuration

PURPOSE:
  Collects every tunable of the server in one struct. Values come from, in
  increasing precedence:
  1. env-default tags below
  2. an optional YAML file (-config flag or CONFIG_PATH)
  3. environment variables, including a .env file in the working directory
  4. command-line flags applied by cmd/server

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type HTTPConfig struct {
	Port         int           `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	CORSOrigins  []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables auth, and
	// every request runs as an anonymous admin.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type TimelineConfig struct {
	InitialDays    int           `yaml:"initial_days" env:"TIMELINE_INITIAL_DAYS" env-default:"14"`
	ChunkDays      int           `yaml:"chunk_days" env:"TIMELINE_CHUNK_DAYS" env-default:"14"`
	MaxDays        int           `yaml:"max_days" env:"TIMELINE_MAX_DAYS" env-default:"366"`
	SessionTTL     time.Duration `yaml:"session_ttl" env:"TIMELINE_SESSION_TTL" env-default:"30m"`
	ReaperInterval time.Duration `yaml:"reaper_interval" env:"TIMELINE_REAPER_INTERVAL" env-default:"1m"`
}

type Config struct {
	DBPath   string         `yaml:"db" env:"DB_PATH" env-default:"worklog.db"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Timeline TimelineConfig `yaml:"timeline"`
}

// Load reads .env (if present), then the YAML file at path (if any), then
// the environment. A missing YAML file is not an error.
func Load(path string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.Validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}
	if c.Timeline.InitialDays <= 0 || c.Timeline.ChunkDays <= 0 {
		return errors.New("timeline initial_days and chunk_days must be positive")
	}
	if c.Timeline.MaxDays < c.Timeline.InitialDays {
		return fmt.Errorf("timeline max_days %d below initial_days %d", c.Timeline.MaxDays, c.Timeline.InitialDays)
	}
	if c.Timeline.SessionTTL <= 0 {
		return fmt.Errorf("timeline session_ttl %s must be positive", c.Timeline.SessionTTL)
	}
	if c.Timeline.ReaperInterval <= 0 {
		return fmt.Errorf("timeline reaper_interval %s must be positive", c.Timeline.ReaperInterval)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
