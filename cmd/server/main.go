/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workday engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Configure the logrus logger
  3. Load the fixed holiday calendar (YAML file or built-in table)
  4. Initialize SQLite store
  5. Create API handler and router
  6. Start server with graceful shutdown
  A listener failure is returned to main after the store is closed.

COMMAND-LINE FLAGS (env var in brackets):
  -port        HTTP server port [PORT] (default: 8080)
  -db          SQLite database path [DB_PATH] (default: workday.db)
               Use ":memory:" for in-memory database
  -holidays    Fixed holiday YAML file [HOLIDAYS_FILE] (default: built-in)
  -log-level   [LOG_LEVEL] (default: info)
  -log-format  text or json [LOG_FORMAT] (default: text)
  -rate-limit  Requests per minute per IP [RATE_LIMIT_PER_MIN] (default: 600)
  -cors-origins [CORS_ORIGINS]

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and a holiday file
  ./server -db="./data/workday.db" -holidays=config/holidays.example.yaml

  # Run with in-memory database and JSON logs
  ./server -db=":memory:" -log-format=json

SEE ALSO:
  - config/config.go: Settings and their sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/workday-engine/api"
	"github.com/warp/workday-engine/calendar"
	"github.com/warp/workday-engine/config"
	"github.com/warp/workday-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		logrus.Fatalf("Failed to configure logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal(err)
	}
	logger.Info("server stopped")
}

// run returns only after the store is closed, so main can exit on its error.
func run(cfg config.Config, logger *logrus.Logger) error {
	fixed, err := loadFixedCalendar(cfg.HolidaysFile)
	if err != nil {
		return fmt.Errorf("failed to load holidays: %w", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, fixed, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":      cfg.Port,
			"db":        cfg.DBPath,
			"calendars": handler.Calendars.Names(),
		}).Info("server starting")
		serveErr <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// loadFixedCalendar falls back to the built-in table when path is empty.
func loadFixedCalendar(path string) (*calendar.StaticCalendar, error) {
	if path == "" {
		return calendar.NewStaticCalendar(calendar.DefaultFixedHolidays()), nil
	}
	return calendar.LoadFixedCalendar(path)
}
