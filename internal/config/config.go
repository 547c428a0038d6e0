// Package config provides the configuration structure for the pollypress binaries.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Queue and synthesis backends.
const (
	QueueBackendSQS  = "sqs"
	QueueBackendNATS = "nats"

	StorageBackendS3   = "s3"
	StorageBackendNATS = "nats"

	SynthesisBackendPolly  = "polly"
	SynthesisBackendHTTP   = "http"
	SynthesisBackendGoogle = "google"
)

// Environment variables read at cold start.
const (
	EnvInputBucket        = "INPUT_BUCKET"
	EnvOutputBucket       = "OUTPUT_BUCKET"
	EnvProcessingQueueURL = "PROCESSING_QUEUE_URL"
	EnvAWSRegion          = "AWS_REGION"
	EnvS3BaseEndpoint     = "S3_BASE_ENDPOINT"
	EnvStorageBackend     = "STORAGE_BACKEND"
	EnvQueueBackend       = "QUEUE_BACKEND"
	EnvNATSURL            = "NATS_URL"
	EnvSynthesisBackend   = "SYNTHESIS_BACKEND"
	EnvTTSServiceURL      = "TTS_SERVICE_URL"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvLogDir             = "LOG_DIR"
	EnvAllowedOrigins     = "ALLOWED_ORIGINS"
	EnvBatchSize          = "BATCH_SIZE"
)

// AWSConfig holds credentials and region shared by the S3, SQS and Polly clients.
type AWSConfig struct {
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// StorageConfig holds the bucket layout and presigned URL lifetimes.
type StorageConfig struct {
	Backend                  string `toml:"backend"`
	InputBucket              string `toml:"input_bucket"`
	OutputBucket             string `toml:"output_bucket"`
	BaseEndpoint             string `toml:"base_endpoint"`
	UsePathStyle             bool   `toml:"use_path_style"`
	UploadURLExpirySeconds   int    `toml:"upload_url_expiry_seconds"`
	DownloadURLExpirySeconds int    `toml:"download_url_expiry_seconds"`
}

// QueueConfig holds the processing queue settings for both backends.
type QueueConfig struct {
	Backend               string `toml:"backend"`
	ProcessingQueueURL    string `toml:"processing_queue_url"`
	NATSURL               string `toml:"nats_url"`
	StreamName            string `toml:"stream_name"`
	ConsumerName          string `toml:"consumer_name"`
	Subject               string `toml:"subject"`
	DeadLetterSubject     string `toml:"dead_letter_subject"`
	StorageEventsSubject  string `toml:"storage_events_subject"`
	BatchSize             int    `toml:"batch_size"`
	MaxDeliver            int    `toml:"max_deliver"`
	AckWaitSeconds        int    `toml:"ack_wait_seconds"`
	FetchWaitSeconds      int    `toml:"fetch_wait_seconds"`
	ProcessTimeoutSeconds int    `toml:"process_timeout_seconds"`
	EventRetrySeconds     int    `toml:"event_retry_seconds"`
}

// SynthesisConfig holds the speech synthesis backend and its fixed voice parameters.
type SynthesisConfig struct {
	Backend         string `toml:"backend"`
	VoiceID         string `toml:"voice_id"`
	Engine          string `toml:"engine"`
	LanguageCode    string `toml:"language_code"`
	ServiceURL      string `toml:"service_url"`
	GoogleVoiceName string `toml:"google_voice_name"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	ListenAddr            string   `toml:"listen_addr"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	AllowedOrigins        []string `toml:"allowed_origins"`
	AcceptedFileTypes     []string `toml:"accepted_file_types"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	AWS       AWSConfig       `toml:"aws"`
	Storage   StorageConfig   `toml:"storage"`
	Queue     QueueConfig     `toml:"queue"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	API       APIConfig       `toml:"api"`
	Paths     PathsConfig     `toml:"paths"`
}

// Defaults returns the configuration every binary starts from.
func Defaults() *Config {
	return &Config{
		AWS: AWSConfig{
			Region:          "us-east-1",
			AccessKeyID:     "",
			SecretAccessKey: "",
		},
		Storage: StorageConfig{
			Backend:                  StorageBackendS3,
			InputBucket:              "",
			OutputBucket:             "",
			BaseEndpoint:             "",
			UsePathStyle:             false,
			UploadURLExpirySeconds:   900,
			DownloadURLExpirySeconds: 3600,
		},
		Queue: QueueConfig{
			Backend:               QueueBackendSQS,
			ProcessingQueueURL:    "",
			NATSURL:               "nats://127.0.0.1:4222",
			StreamName:            "POLLYPRESS_JOBS",
			ConsumerName:          "pollypress-processor",
			Subject:               "pollypress.jobs",
			DeadLetterSubject:     "pollypress.jobs.dead",
			StorageEventsSubject:  "pollypress.storage.events",
			BatchSize:             1,
			MaxDeliver:            3,
			AckWaitSeconds:        330,
			FetchWaitSeconds:      5,
			ProcessTimeoutSeconds: 300,
			EventRetrySeconds:     60,
		},
		Synthesis: SynthesisConfig{
			Backend:         SynthesisBackendPolly,
			VoiceID:         "Joanna",
			Engine:          "neural",
			LanguageCode:    "en-US",
			ServiceURL:      "",
			GoogleVoiceName: "en-US-Neural2-C",
			TimeoutSeconds:  60,
		},
		API: APIConfig{
			ListenAddr:            ":8080",
			RequestTimeoutSeconds: 30,
			AllowedOrigins:        []string{"*"},
			AcceptedFileTypes: []string{
				"text/plain",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
		},
		Paths: PathsConfig{
			BaseLogsDir: filepath.Join(os.TempDir(), "pollypress"),
		},
	}
}

// Load reads the project configuration through the central configurator and
// then applies environment overrides.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Defaults()

	err := configurator.Load(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	err = cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds the configuration from defaults and the process environment
// only. Event-runtime binaries, which ship without a project file, use it.
func FromEnv() (*Config, error) {
	cfg := Defaults()

	err := cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides configuration values with the environment variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	stringOverrides := map[string]*string{
		EnvInputBucket:        &c.Storage.InputBucket,
		EnvOutputBucket:       &c.Storage.OutputBucket,
		EnvProcessingQueueURL: &c.Queue.ProcessingQueueURL,
		EnvAWSRegion:          &c.AWS.Region,
		EnvS3BaseEndpoint:     &c.Storage.BaseEndpoint,
		EnvStorageBackend:     &c.Storage.Backend,
		EnvQueueBackend:       &c.Queue.Backend,
		EnvNATSURL:            &c.Queue.NATSURL,
		EnvSynthesisBackend:   &c.Synthesis.Backend,
		EnvTTSServiceURL:      &c.Synthesis.ServiceURL,
		EnvListenAddr:         &c.API.ListenAddr,
		EnvLogDir:             &c.Paths.BaseLogsDir,
	}

	for name, target := range stringOverrides {
		value, ok := lookup(name)
		if ok {
			*target = strings.TrimSpace(value)
		}
	}

	origins, ok := lookup(EnvAllowedOrigins)
	if ok {
		c.API.AllowedOrigins = splitList(origins)
	}

	batchSize, ok := lookup(EnvBatchSize)
	if ok {
		size, err := strconv.Atoi(strings.TrimSpace(batchSize))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", EnvBatchSize, err)
		}

		c.Queue.BatchSize = size
	}

	return nil
}

// UploadURLExpiry returns the lifetime of presigned upload URLs.
func (s StorageConfig) UploadURLExpiry() time.Duration {
	return time.Duration(s.UploadURLExpirySeconds) * time.Second
}

// DownloadURLExpiry returns the lifetime of presigned download URLs.
func (s StorageConfig) DownloadURLExpiry() time.Duration {
	return time.Duration(s.DownloadURLExpirySeconds) * time.Second
}

// AckWait returns how long a fetched message stays invisible to other consumers.
func (q QueueConfig) AckWait() time.Duration {
	return time.Duration(q.AckWaitSeconds) * time.Second
}

// FetchWait returns how long one pull request waits for messages.
func (q QueueConfig) FetchWait() time.Duration {
	return time.Duration(q.FetchWaitSeconds) * time.Second
}

// ProcessTimeout returns the time budget for one batch.
func (q QueueConfig) ProcessTimeout() time.Duration {
	return time.Duration(q.ProcessTimeoutSeconds) * time.Second
}

// EventRetryDelay returns how long a failed storage event waits before redelivery.
func (q QueueConfig) EventRetryDelay() time.Duration {
	return time.Duration(q.EventRetrySeconds) * time.Second
}

// Timeout returns the per-call synthesis timeout.
func (s SynthesisConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request API timeout.
func (a APIConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func splitList(value string) []string {
	var items []string

	for _, item := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}

	return items
}
