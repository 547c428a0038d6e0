// Package config_test tests the configuration loading for pollypress.
package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/book-expert/pollypress/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, ok := values[name]

		return value, ok
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[aws]
region = "eu-west-1"

[storage]
input_bucket = "pollypress-dev-input"
output_bucket = "pollypress-dev-output"
base_endpoint = "http://127.0.0.1:9000"
use_path_style = true

[queue]
backend = "nats"
nats_url = "nats://127.0.0.1:4222"
stream_name = "POLLYPRESS_JOBS"
consumer_name = "pollypress-processor"
subject = "pollypress.jobs"
dead_letter_subject = "pollypress.jobs.dead"
storage_events_subject = "pollypress.storage.events"
batch_size = 1
max_deliver = 3
ack_wait_seconds = 330

[synthesis]
backend = "http"
service_url = "http://localhost:8000"
timeout_seconds = 120

[api]
listen_addr = ":9090"
allowed_origins = ["https://pollypress.example.com"]
`

	cfg := config.Defaults()

	err := toml.Unmarshal([]byte(tomlData), cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "pollypress-dev-input", cfg.Storage.InputBucket)
	assert.Equal(t, "pollypress-dev-output", cfg.Storage.OutputBucket)
	assert.True(t, cfg.Storage.UsePathStyle)
	assert.Equal(t, config.QueueBackendNATS, cfg.Queue.Backend)
	assert.Equal(t, 330, cfg.Queue.AckWaitSeconds)
	assert.Equal(t, "http://localhost:8000", cfg.Synthesis.ServiceURL)
	assert.Equal(t, 120, cfg.Synthesis.TimeoutSeconds)
	assert.Equal(t, []string{"https://pollypress.example.com"}, cfg.API.AllowedOrigins)

	// Values absent from the file keep their defaults.
	assert.Equal(t, "Joanna", cfg.Synthesis.VoiceID)
	assert.Equal(t, 900, cfg.Storage.UploadURLExpirySeconds)
	assert.Equal(t, 3600, cfg.Storage.DownloadURLExpirySeconds)
	assert.Equal(t, time.Minute, cfg.Queue.EventRetryDelay())
	assert.Len(t, cfg.API.AcceptedFileTypes, 3)

	require.NoError(t, cfg.ValidateAPI())
	require.NoError(t, cfg.ValidateWorker())
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()

	err := cfg.ApplyEnv(envLookup(map[string]string{
		config.EnvInputBucket:        "in",
		config.EnvOutputBucket:       " out ",
		config.EnvProcessingQueueURL: "https://sqs.us-east-1.amazonaws.com/123456789012/pollypress-dev-queue",
		config.EnvAllowedOrigins:     "https://a.example.com, https://b.example.com,",
		config.EnvBatchSize:          "5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "in", cfg.Storage.InputBucket)
	assert.Equal(t, "out", cfg.Storage.OutputBucket)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.API.AllowedOrigins)
	assert.Equal(t, 5, cfg.Queue.BatchSize)

	require.NoError(t, cfg.ValidateAPI())
	require.NoError(t, cfg.ValidateReceiver())
	require.NoError(t, cfg.ValidateProcessor())
}

func TestApplyEnv_InvalidBatchSize(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()

	err := cfg.ApplyEnv(envLookup(map[string]string{config.EnvBatchSize: "many"}))
	require.Error(t, err)
}

func TestValidate_FailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(cfg *config.Config)
		validate func(cfg *config.Config) error
		wantErr  error
	}{
		{
			name:     "api without input bucket",
			mutate:   func(cfg *config.Config) { cfg.Storage.InputBucket = "" },
			validate: (*config.Config).ValidateAPI,
			wantErr:  config.ErrInputBucketMissing,
		},
		{
			name:     "api without output bucket",
			mutate:   func(cfg *config.Config) { cfg.Storage.OutputBucket = "" },
			validate: (*config.Config).ValidateAPI,
			wantErr:  config.ErrOutputBucketMissing,
		},
		{
			name:     "receiver without queue url",
			mutate:   func(cfg *config.Config) { cfg.Queue.ProcessingQueueURL = "" },
			validate: (*config.Config).ValidateReceiver,
			wantErr:  config.ErrQueueURLInvalid,
		},
		{
			name:     "receiver with malformed queue url",
			mutate:   func(cfg *config.Config) { cfg.Queue.ProcessingQueueURL = "not a url" },
			validate: (*config.Config).ValidateReceiver,
			wantErr:  config.ErrQueueURLInvalid,
		},
		{
			name:     "receiver with unknown backend",
			mutate:   func(cfg *config.Config) { cfg.Queue.Backend = "kafka" },
			validate: (*config.Config).ValidateReceiver,
			wantErr:  config.ErrUnknownQueueBackend,
		},
		{
			name:     "processor without output bucket",
			mutate:   func(cfg *config.Config) { cfg.Storage.OutputBucket = "" },
			validate: (*config.Config).ValidateProcessor,
			wantErr:  config.ErrOutputBucketMissing,
		},
		{
			name:     "processor with oversized batch",
			mutate:   func(cfg *config.Config) { cfg.Queue.BatchSize = 11 },
			validate: (*config.Config).ValidateProcessor,
			wantErr:  config.ErrBatchSizeRange,
		},
		{
			name:     "processor with http backend and no url",
			mutate:   func(cfg *config.Config) { cfg.Synthesis.Backend = config.SynthesisBackendHTTP },
			validate: (*config.Config).ValidateProcessor,
			wantErr:  config.ErrServiceURLMissing,
		},
		{
			name:     "processor with unknown synthesis backend",
			mutate:   func(cfg *config.Config) { cfg.Synthesis.Backend = "espeak" },
			validate: (*config.Config).ValidateProcessor,
			wantErr:  config.ErrUnknownSynthesisBackend,
		},
		{
			name:     "worker on sqs",
			mutate:   func(_ *config.Config) {},
			validate: (*config.Config).ValidateWorker,
			wantErr:  config.ErrWorkerNeedsNATS,
		},
		{
			name: "worker without subjects",
			mutate: func(cfg *config.Config) {
				cfg.Queue.Backend = config.QueueBackendNATS
				cfg.Queue.DeadLetterSubject = ""
			},
			validate: (*config.Config).ValidateWorker,
			wantErr:  config.ErrSubjectMissing,
		},
		{
			name: "worker with unknown storage backend",
			mutate: func(cfg *config.Config) {
				cfg.Queue.Backend = config.QueueBackendNATS
				cfg.Storage.Backend = "gcs"
			},
			validate: (*config.Config).ValidateWorker,
			wantErr:  config.ErrUnknownStorageBackend,
		},
		{
			name:     "api on nats storage",
			mutate:   func(cfg *config.Config) { cfg.Storage.Backend = config.StorageBackendNATS },
			validate: (*config.Config).ValidateAPI,
			wantErr:  config.ErrPresignNeedsS3,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Defaults()
			cfg.Storage.InputBucket = "in"
			cfg.Storage.OutputBucket = "out"
			cfg.Queue.ProcessingQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/q"
			testCase.mutate(cfg)

			require.ErrorIs(t, testCase.validate(cfg), testCase.wantErr)
		})
	}
}

func TestLoadAWS_StaticCredentials(t *testing.T) {
	t.Parallel()

	awsCfg, err := config.AWSConfig{
		Region:          "us-east-1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	}.LoadAWS(context.Background())
	require.NoError(t, err)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", awsCfg.Region)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)
}
