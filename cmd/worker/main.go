package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gramwatch/gramwatch/internal/db"
	"github.com/gramwatch/gramwatch/internal/scheduler"
	"github.com/gramwatch/gramwatch/internal/sessioncrypto"
	"github.com/gramwatch/gramwatch/internal/worker"
	"github.com/gramwatch/gramwatch/pkg/config"
	"github.com/gramwatch/gramwatch/pkg/logging"
	"github.com/gramwatch/gramwatch/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Gramwatch Worker")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// The session key is validated at load; a bad key never reaches a job
	key, err := cfg.Worker.SessionKeyBytes()
	if err != nil {
		logger.Fatal("Invalid session key", zap.Error(err))
	}
	cipher, err := sessioncrypto.New(key)
	if err != nil {
		logger.Fatal("Failed to initialize session cipher", zap.Error(err))
	}

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the periodic resync scheduler
	sched := scheduler.New(cfg, database)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Run the dispatcher until interrupted
	dispatcher := worker.NewDispatcher(cfg, database, cipher)
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down worker...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("Dispatcher stopped", zap.Error(err))
		}
	}

	logger.Info("Worker exited")
}
