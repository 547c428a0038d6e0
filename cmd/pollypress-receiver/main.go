// main package for the storage-event receiver Lambda: S3 object-created
// notifications in, job descriptors onto SQS out.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/queue"
	"github.com/book-expert/pollypress/internal/receiver"
)

const logFile = "pollypress-receiver.log"

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.ValidateReceiver()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	awsConfig, err := cfg.AWS.LoadAWS(context.Background())
	if err != nil {
		return err
	}

	publisher := queue.NewSQSPublisherFromConfig(awsConfig, cfg.Queue.ProcessingQueueURL)
	handler := receiver.New(publisher, log)

	log.System("pollypress receiver initialized. Queue: %s", cfg.Queue.ProcessingQueueURL)

	lambda.Start(handler.HandleS3Event)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Receiver exited with error: %v\n", err)
		os.Exit(1)
	}
}
