package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/worklog-timeline/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "worklog.db", cfg.DBPath)
	assert.Equal(t, 14, cfg.Timeline.InitialDays)
	assert.Equal(t, 30*time.Minute, cfg.Timeline.SessionTTL)
	assert.Equal(t, 366, cfg.Timeline.MaxDays)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.HTTP.CORSOrigins)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	// GIVEN: a YAML file setting the port and chunk size
	// WHEN: PORT is also set in the environment
	// THEN: the environment wins, the YAML fills the rest
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "db: /tmp/x.db\nhttp:\n  port: 9000\ntimeline:\n  chunk_days: 7\nlog:\n  level: debug\n  format: json\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("PORT", "9100")

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTP.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.Timeline.ChunkDays)

	logger := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("TIMELINE_INITIAL_DAYS", "21")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Timeline.InitialDays)
}

func TestValidate(t *testing.T) {
	cfg := config.Config{
		HTTP:     config.HTTPConfig{Port: 8080},
		Log:      config.LogConfig{Level: "info"},
		Timeline: config.TimelineConfig{
			InitialDays:    14,
			ChunkDays:      14,
			MaxDays:        366,
			SessionTTL:     30 * time.Minute,
			ReaperInterval: time.Minute,
		},
	}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.HTTP.Port = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Log.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Timeline.MaxDays = 7
	assert.Error(t, bad.Validate(), "window cap below the initial window")
}

func TestValidate_RejectsNonPositiveReaperTimings(t *testing.T) {
	// GIVEN: an otherwise valid config
	// WHEN: the reaper interval or session TTL is zero or negative
	// THEN: Validate fails instead of letting the ticker panic at startup
	cfg := config.Config{
		HTTP: config.HTTPConfig{Port: 8080},
		Log:  config.LogConfig{Level: "info"},
		Timeline: config.TimelineConfig{
			InitialDays:    14,
			ChunkDays:      14,
			MaxDays:        366,
			SessionTTL:     30 * time.Minute,
			ReaperInterval: time.Minute,
		},
	}

	for _, d := range []time.Duration{0, -time.Second} {
		bad := cfg
		bad.Timeline.ReaperInterval = d
		assert.Error(t, bad.Validate(), "reaper_interval %s", d)

		bad = cfg
		bad.Timeline.SessionTTL = d
		assert.Error(t, bad.Validate(), "session_ttl %s", d)
	}
}

func TestLoad_ZeroReaperIntervalFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("TIMELINE_REAPER_INTERVAL", "0s")

	_, err := config.Load("")

	assert.Error(t, err)
}
