// main package for the self-hosted pollypress worker: storage-event receiver
// and queue processor over NATS JetStream.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/core"
	"github.com/book-expert/pollypress/internal/extract"
	"github.com/book-expert/pollypress/internal/objectstore"
	"github.com/book-expert/pollypress/internal/processor"
	"github.com/book-expert/pollypress/internal/queue"
	"github.com/book-expert/pollypress/internal/receiver"
	"github.com/book-expert/pollypress/internal/storage"
	"github.com/book-expert/pollypress/internal/synth"
	"github.com/book-expert/pollypress/internal/worker"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
)

const (
	bootstrapLogFile = "pollypress-worker-bootstrap.log"
	finalLogFile     = "pollypress-worker.log"
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

	err = cfg.ValidateWorker()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return fmt.Errorf("invalid configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

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

	return serve(ctx, cfg, finalLog)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	awsConfig, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return err
	}

	synthesizer, closeSynthesizer, err := synth.New(ctx, cfg.Synthesis, awsConfig)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	defer func() {
		closeErr := closeSynthesizer()
		if closeErr != nil {
			log.Warn("Failed to close synthesizer: %v", closeErr)
		}
	}()

	healthCtx, cancelHealth := context.WithTimeout(ctx, cfg.Synthesis.Timeout())
	err = synth.CheckHealth(healthCtx, synthesizer)

	cancelHealth()

	if err != nil {
		log.Error("Synthesis backend %s failed its health check: %v", cfg.Synthesis.Backend, err)

		return err
	}

	natsConnection, err := nats.Connect(cfg.Queue.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.Queue.NATSURL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := newObjectStore(cfg.Storage, awsConfig, jetstreamContext)
	if err != nil {
		return err
	}

	eventReceiver := receiver.New(queue.NewJetStreamPublisher(jetstreamContext, cfg.Queue.Subject), log)
	jobProcessor := processor.New(store, synthesizer, extract.NewRegistry(), cfg.Storage.OutputBucket, log)

	natsWorker, err := worker.NewNatsWorker(
		jetstreamContext, worker.SettingsFromConfig(cfg.Queue), eventReceiver, jobProcessor, log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	log.System("pollypress worker initialized. Consuming %s, storage events on %s, storage backend %s, synthesis backend %s",
		cfg.Queue.Subject, cfg.Queue.StorageEventsSubject, cfg.Storage.Backend, cfg.Synthesis.Backend)

	err = natsWorker.Run(ctx)
	if err != nil {
		log.Error("Worker stopped with error: %v", err)

		return err
	}

	log.System("pollypress worker stopped.")

	return nil
}

// newObjectStore returns the object store selected by the storage backend.
func newObjectStore(
	cfg config.StorageConfig, awsConfig aws.Config, jetstreamContext nats.JetStreamContext,
) (core.ObjectStore, error) {
	if cfg.Backend == config.StorageBackendNATS {
		store, err := objectstore.New(jetstreamContext, cfg.InputBucket, cfg.OutputBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS object store: %w", err)
		}

		return store, nil
	}

	return storage.New(awsConfig, storage.Options{
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: cfg.UsePathStyle,
	}), nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
