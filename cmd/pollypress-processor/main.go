// main package for the queue processor Lambda: SQS batches in, MP3 objects
// out, partial batch failures reported back to SQS.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/extract"
	"github.com/book-expert/pollypress/internal/processor"
	"github.com/book-expert/pollypress/internal/storage"
	"github.com/book-expert/pollypress/internal/synth"
)

const logFile = "pollypress-processor.log"

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.ValidateProcessor()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	ctx := context.Background()

	awsConfig, err := cfg.AWS.LoadAWS(ctx)
	if err != nil {
		return err
	}

	store := storage.New(awsConfig, storage.Options{
		BaseEndpoint: cfg.Storage.BaseEndpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})

	// The Lambda runtime never returns from Start, so the synthesizer is not closed.
	synthesizer, _, err := synth.New(ctx, cfg.Synthesis, awsConfig)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}

	healthCtx, cancelHealth := context.WithTimeout(ctx, cfg.Synthesis.Timeout())
	err = synth.CheckHealth(healthCtx, synthesizer)

	cancelHealth()

	if err != nil {
		log.Error("Synthesis backend %s failed its health check: %v", cfg.Synthesis.Backend, err)

		return err
	}

	handler := processor.New(store, synthesizer, extract.NewRegistry(), cfg.Storage.OutputBucket, log)

	log.System("pollypress processor initialized. Output bucket: %s, synthesis backend: %s",
		cfg.Storage.OutputBucket, cfg.Synthesis.Backend)

	lambda.Start(handler.HandleSQSEvent)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processor exited with error: %v\n", err)
		os.Exit(1)
	}
}
