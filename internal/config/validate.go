package config

import (
	"errors"
	"fmt"

	"github.com/book-expert/pollypress/internal/validate"
)

var (
	// ErrInputBucketMissing indicates that INPUT_BUCKET is not set.
	ErrInputBucketMissing = errors.New("input bucket cannot be empty")
	// ErrOutputBucketMissing indicates that OUTPUT_BUCKET is not set.
	ErrOutputBucketMissing = errors.New("output bucket cannot be empty")
	// ErrQueueURLInvalid indicates that PROCESSING_QUEUE_URL is missing or not a URL.
	ErrQueueURLInvalid = errors.New("processing queue url must be a valid url")
	// ErrNATSURLMissing indicates that the NATS url is not set for the nats backend.
	ErrNATSURLMissing = errors.New("nats url cannot be empty")
	// ErrSubjectMissing indicates that a required NATS subject or stream name is empty.
	ErrSubjectMissing = errors.New("nats stream, consumer and subjects cannot be empty")
	// ErrUnknownQueueBackend indicates an unsupported queue backend.
	ErrUnknownQueueBackend = errors.New("unknown queue backend")
	// ErrUnknownStorageBackend indicates an unsupported storage backend.
	ErrUnknownStorageBackend = errors.New("unknown storage backend")
	// ErrPresignNeedsS3 indicates that presigned URLs were requested from a non-s3 storage backend.
	ErrPresignNeedsS3 = errors.New("the api requires the s3 storage backend")
	// ErrUnknownSynthesisBackend indicates an unsupported synthesis backend.
	ErrUnknownSynthesisBackend = errors.New("unknown synthesis backend")
	// ErrServiceURLMissing indicates that the http synthesis backend has no service url.
	ErrServiceURLMissing = errors.New("tts service url must be a valid url")
	// ErrVoiceMissing indicates that the synthesis voice parameters are incomplete.
	ErrVoiceMissing = errors.New("voice id, engine and language code cannot be empty")
	// ErrBatchSizeRange indicates a batch size outside [1, 10].
	ErrBatchSizeRange = errors.New("batch size must be between 1 and 10")
	// ErrWorkerNeedsNATS indicates that the self-hosted worker was configured with a non-nats queue.
	ErrWorkerNeedsNATS = errors.New("the worker requires the nats queue backend")
	// ErrNoAcceptedFileTypes indicates that the API accepts no upload types.
	ErrNoAcceptedFileTypes = errors.New("accepted file types cannot be empty")
)

const maxBatchSize = 10

var urlValidator = validate.New()

// ValidateAPI checks the settings the upload/download API needs.
func (c *Config) ValidateAPI() error {
	if c.Storage.Backend != StorageBackendS3 {
		return fmt.Errorf("%w: got %q", ErrPresignNeedsS3, c.Storage.Backend)
	}

	if c.Storage.InputBucket == "" {
		return ErrInputBucketMissing
	}

	if c.Storage.OutputBucket == "" {
		return ErrOutputBucketMissing
	}

	if len(c.API.AcceptedFileTypes) == 0 {
		return ErrNoAcceptedFileTypes
	}

	return nil
}

// ValidateReceiver checks the settings the storage-event receiver needs.
func (c *Config) ValidateReceiver() error {
	switch c.Queue.Backend {
	case QueueBackendSQS:
		err := urlValidator.Var(c.Queue.ProcessingQueueURL, "required,url")
		if err != nil {
			return fmt.Errorf("%w: %q", ErrQueueURLInvalid, c.Queue.ProcessingQueueURL)
		}
	case QueueBackendNATS:
		return c.validateNATS()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQueueBackend, c.Queue.Backend)
	}

	return nil
}

// ValidateProcessor checks the settings the queue processor needs.
func (c *Config) ValidateProcessor() error {
	if c.Storage.OutputBucket == "" {
		return ErrOutputBucketMissing
	}

	if c.Queue.BatchSize < 1 || c.Queue.BatchSize > maxBatchSize {
		return fmt.Errorf("%w: got %d", ErrBatchSizeRange, c.Queue.BatchSize)
	}

	if c.Synthesis.VoiceID == "" || c.Synthesis.Engine == "" || c.Synthesis.LanguageCode == "" {
		return ErrVoiceMissing
	}

	switch c.Synthesis.Backend {
	case SynthesisBackendPolly, SynthesisBackendGoogle:
		return nil
	case SynthesisBackendHTTP:
		err := urlValidator.Var(c.Synthesis.ServiceURL, "required,url")
		if err != nil {
			return fmt.Errorf("%w: %q", ErrServiceURLMissing, c.Synthesis.ServiceURL)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSynthesisBackend, c.Synthesis.Backend)
	}
}

// ValidateWorker checks the settings of the self-hosted worker, which runs
// both the receiver and the processor over NATS.
func (c *Config) ValidateWorker() error {
	if c.Queue.Backend != QueueBackendNATS {
		return fmt.Errorf("%w: got %q", ErrWorkerNeedsNATS, c.Queue.Backend)
	}

	err := c.ValidateReceiver()
	if err != nil {
		return err
	}

	if c.Storage.InputBucket == "" {
		return ErrInputBucketMissing
	}

	switch c.Storage.Backend {
	case StorageBackendS3, StorageBackendNATS:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorageBackend, c.Storage.Backend)
	}

	return c.ValidateProcessor()
}

func (c *Config) validateNATS() error {
	if c.Queue.NATSURL == "" {
		return ErrNATSURLMissing
	}

	if c.Queue.StreamName == "" || c.Queue.ConsumerName == "" ||
		c.Queue.Subject == "" || c.Queue.DeadLetterSubject == "" || c.Queue.StorageEventsSubject == "" {
		return ErrSubjectMissing
	}

	return nil
}
