// main package for the pollypress HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/api"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/storage"
	"github.com/joho/godotenv"
)

const (
	bootstrapLogFile = "pollypress-api-bootstrap.log"
	finalLogFile     = "pollypress-api.log"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	envErr := godotenv.Load()
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		bootstrapLog.Warn("Failed to load .env file: %v", envErr)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.ValidateAPI()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return fmt.Errorf("invalid configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, finalLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsConfig, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return err
	}

	store := storage.New(awsConfig, storage.Options{
		BaseEndpoint: cfg.Storage.BaseEndpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})

	server := api.NewServer(store, store, cfg.Storage, cfg.API, finalLog).HTTPServer()

	serveErr := make(chan error, 1)

	go func() {
		finalLog.System("pollypress API listening on %s", cfg.API.ListenAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			finalLog.Error("API server failed: %v", err)

			return fmt.Errorf("api server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	finalLog.System("pollypress API shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), api.ShutdownGracePeriod())
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
