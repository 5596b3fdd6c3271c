/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the worklog timeline server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, YAML, environment, flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Create API handler, router and session reaper
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional, also CONFIG_PATH)
  -port    HTTP server port, overrides config
  -db      SQLite database path, overrides config
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the session reaper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/worklog.db"
  ./server -db=":memory:" -port=3000
  JWT_SECRET=dev LOG_FORMAT=json ./server

SEE ALSO:
  - config/config.go: Settings and their env names
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/worklog-timeline/api"
	"github.com/warp/worklog-timeline/config"
	"github.com/warp/worklog-timeline/store/sqlite"
	"github.com/warp/worklog-timeline/timeline"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := cfg.NewLogger()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, timeline.Options{
		InitialDays: cfg.Timeline.InitialDays,
		ChunkDays:   cfg.Timeline.ChunkDays,
		MaxDays:     cfg.Timeline.MaxDays,
	}, logger)

	auth := api.NewAuthenticator(cfg.Auth.JWTSecret)
	if auth == nil {
		logger.Warn("JWT_SECRET not set, authentication disabled")
	}

	router := api.NewRouter(handler, api.RouterOptions{
		Auth:           auth,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		Log:            logger,
	})

	reaper := api.NewSessionReaper(handler.Sessions, logger)
	reaper.CheckInterval = cfg.Timeline.ReaperInterval
	reaper.TTL = cfg.Timeline.SessionTTL
	reaper.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.HTTP.Port,
			"db":   cfg.DBPath,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
