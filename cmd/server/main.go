/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the absence engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Load the policy (file or built-in default)
  5. Build the engine, handler and router
  6. Seed a demo scenario if configured and the store is empty
  7. Start the overload monitor
  8. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: absence.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the overload monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/absence.db"
  SEED_SCENARIO=overload-week ./server -db=":memory:"
  LOG_FORMAT=console LOG_LEVEL=debug ./server -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/api"
	"github.com/warp/absence-engine/config"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Server.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Server.Port = *port
	cfg.Server.DBPath = *dbPath

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	policy := absence.DefaultPolicy()
	if cfg.Policy.File != "" {
		policy, err = factory.LoadPolicyFile(cfg.Policy.File)
		if err != nil {
			return err
		}
	}
	logger.Info("policy loaded", zap.String("policy_id", policy.ID), zap.Bool("allow_reversal", policy.AllowReversal))

	engine := absence.New(store, absence.Config{
		Policy: policy,
		Audit:  generic.NewLogAuditSink(logger.Named("audit")),
		Logger: logger,
	})

	handler := api.NewHandler(engine, logger.Named("api"))
	handler.CORSOrigins = cfg.Server.CORSOrigins

	if cfg.Server.SeedScenario != "" {
		if err := seed(context.Background(), engine, handler, cfg.Server.SeedScenario, logger); err != nil {
			return err
		}
	}

	monitor := api.NewOverloadMonitor(engine, logger)
	monitor.Enabled = cfg.Monitor.Enabled
	monitor.Interval = cfg.Monitor.Interval
	monitor.HorizonDays = cfg.Monitor.HorizonDays
	handler.Monitor = monitor
	monitor.Start()
	defer monitor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Server.Port), zap.String("db", cfg.Server.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// seed loads the scenario only into an empty store.
func seed(ctx context.Context, engine *absence.Engine, handler *api.Handler, scenarioID string, logger *zap.Logger) error {
	existing, err := engine.Admin.ListEmployees(ctx, absence.EmployeeFilter{})
	if err != nil {
		return fmt.Errorf("check store: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("store not empty, skipping seed", zap.String("scenario_id", scenarioID), zap.Int("employees", len(existing)))
		return nil
	}
	return handler.LoadScenarioByID(ctx, scenarioID)
}
