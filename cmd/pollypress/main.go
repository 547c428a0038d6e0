// main package for the pollypress command-line client: uploads a document,
// waits for its audio and saves the MP3.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/client"
	"github.com/book-expert/pollypress/internal/job"
)

// Flag descriptions.
const (
	flagFileDesc     = "Document to convert (.txt)"
	flagTypeDesc     = "MIME type of the document (detected from content when empty)"
	flagAPIDesc      = "Base URL of the pollypress API (defaults to $POLLYPRESS_API_URL)"
	flagOutputDesc   = "Output file path (.mp3); defaults to the input name with .mp3"
	flagStatusDesc   = "Check API status and exit"
	flagIntervalDesc = "Delay between readiness checks"
	flagAttemptsDesc = "Number of readiness checks before giving up"
	flagTimeoutDesc  = "Timeout of each HTTP request"
	flagVerboseDesc  = "Enable verbose logging"
)

// Flag names.
const (
	flagFile     = "file"
	flagType     = "type"
	flagAPI      = "api"
	flagOutput   = "output"
	flagStatus   = "status"
	flagInterval = "interval"
	flagAttempts = "attempts"
	flagTimeout  = "timeout"
	flagVerbose  = "verbose"
)

// Error and log messages.
const (
	errFileRequired      = "--file must be provided"
	errAPIRequired       = "--api or POLLYPRESS_API_URL must be provided"
	errAttemptsPositive  = "--attempts must be positive"
	errFailedToInitLog   = "Failed to initialize logger: %v"
	errFailedToReadFile  = "Failed to read %s: %v"
	errFailedToConvert   = "Failed to convert %s: %v"
	errFailedToFetch     = "Failed to fetch audio: %v"
	errFailedToWrite     = "Failed to write %s: %v"
	errStatusFailed      = "API is not healthy: %v"
	logClientInitialized = "pollypress client initialized (api: %s)"
	logProgress          = "Waiting for audio... attempt %d/%d\n"
	logSaved             = "Saved audio to %s\n"
	logStatus            = "%s\n"
)

const (
	envAPIURL          = "POLLYPRESS_API_URL"
	logFileNameDefault = "pollypress-client.log"
	logFileNameVerbose = "pollypress-client-verbose.log"
	defaultTimeout     = 30 * time.Second
)

var (
	errMissingFile     = errors.New(errFileRequired)
	errMissingAPI      = errors.New(errAPIRequired)
	errInvalidAttempts = errors.New(errAttemptsPositive)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	file     string
	fileType string
	api      string
	output   string
	status   bool
	interval time.Duration
	attempts int
	timeout  time.Duration
	verbose  bool
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags, err := parseFlags(os.Args[1:], os.LookupEnv)
	if err != nil {
		return err
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	clientLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf(errFailedToInitLog, err)
	}
	defer func() { _ = clientLog.Close() }()

	clientLog.Info(logClientInitialized, flags.api)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiClient := client.New(flags.api, flags.timeout, clientLog)

	if flags.status {
		return handleStatus(ctx, apiClient, clientLog)
	}

	return handleConvert(ctx, apiClient, clientLog, flags)
}

// parseFlags defines and parses command-line flags and validates them.
func parseFlags(args []string, lookupEnv func(string) (string, bool)) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("pollypress", flag.ContinueOnError)
	flagSet.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flagSet.StringVar(&flags.fileType, flagType, "", flagTypeDesc)
	flagSet.StringVar(&flags.api, flagAPI, "", flagAPIDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.BoolVar(&flags.status, flagStatus, false, flagStatusDesc)
	flagSet.DurationVar(&flags.interval, flagInterval, client.DefaultPollInterval, flagIntervalDesc)
	flagSet.IntVar(&flags.attempts, flagAttempts, client.DefaultMaxAttempts, flagAttemptsDesc)
	flagSet.DurationVar(&flags.timeout, flagTimeout, defaultTimeout, flagTimeoutDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	if flags.api == "" {
		flags.api, _ = lookupEnv(envAPIURL)
	}

	return flags, validateFlags(flags)
}

// validateFlags checks required and conflicting arguments.
func validateFlags(flags appFlags) error {
	if flags.api == "" {
		return errMissingAPI
	}

	if flags.status {
		return nil
	}

	if flags.file == "" {
		return errMissingFile
	}

	if flags.attempts <= 0 {
		return errInvalidAttempts
	}

	return nil
}

// outputPath returns where the audio for inputPath is written.
func outputPath(inputPath, outputFlag string) string {
	if outputFlag != "" {
		return outputFlag
	}

	extension := filepath.Ext(inputPath)

	return strings.TrimSuffix(inputPath, extension) + job.OutputExtension
}

// handleStatus checks the API status and prints the result.
func handleStatus(ctx context.Context, apiClient *client.Client, clientLog *logger.Logger) error {
	message, err := apiClient.Status(ctx)
	if err != nil {
		clientLog.Error(errStatusFailed, err)

		return fmt.Errorf(errStatusFailed, err)
	}

	fmt.Printf(logStatus, message)

	return nil
}

// handleConvert uploads the document, waits for the audio and saves it.
func handleConvert(ctx context.Context, apiClient *client.Client, clientLog *logger.Logger, flags appFlags) error {
	data, err := os.ReadFile(flags.file)
	if err != nil {
		return fmt.Errorf(errFailedToReadFile, flags.file, err)
	}

	fileType := flags.fileType
	if fileType == "" {
		fileType = client.DetectFileType(data)
	}

	opts := client.PollOptions{
		Interval:    flags.interval,
		MaxAttempts: flags.attempts,
		OnProgress: func(attempt, maxAttempts int) {
			fmt.Printf(logProgress, attempt, maxAttempts)
		},
	}

	ready, err := apiClient.Convert(ctx, filepath.Base(flags.file), fileType, data, opts)
	if err != nil {
		clientLog.Error(errFailedToConvert, flags.file, err)

		return fmt.Errorf(errFailedToConvert, flags.file, err)
	}

	audio, err := apiClient.FetchAudio(ctx, ready.DownloadURL)
	if err != nil {
		clientLog.Error(errFailedToFetch, err)

		return fmt.Errorf(errFailedToFetch, err)
	}

	target := outputPath(flags.file, flags.output)

	err = os.WriteFile(target, audio, 0o600)
	if err != nil {
		return fmt.Errorf(errFailedToWrite, target, err)
	}

	fmt.Printf(logSaved, target)

	return nil
}
