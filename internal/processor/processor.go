// Package processor converts queued input documents to MP3 audio: it reads a
// descriptor, downloads the referenced text, synthesizes speech and writes the
// result under the output prefix. Failures are isolated per message.
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/core"
	"github.com/book-expert/pollypress/internal/extract"
	"github.com/book-expert/pollypress/internal/job"
)

// ErrEmptyInput is returned when the referenced input object has no content.
var ErrEmptyInput = errors.New("input object is empty")

// Message is one queue message handed to the processor.
type Message struct {
	ID   string
	Body []byte
}

// Result describes a successfully produced audio object.
type Result struct {
	InputKey   string
	OutputKey  string
	AudioBytes int
	Truncated  bool
}

// Processor runs the download, extract, synthesize and upload pipeline.
type Processor struct {
	store        core.ObjectStore
	synthesizer  core.Synthesizer
	extractors   *extract.Registry
	outputBucket string
	log          *logger.Logger
}

// New creates a processor writing audio to outputBucket.
func New(
	store core.ObjectStore,
	synthesizer core.Synthesizer,
	extractors *extract.Registry,
	outputBucket string,
	log *logger.Logger,
) *Processor {
	return &Processor{
		store:        store,
		synthesizer:  synthesizer,
		extractors:   extractors,
		outputBucket: outputBucket,
		log:          log,
	}
}

// HandleBatch processes messages sequentially and returns the IDs of the
// messages that failed. A failure never stops the rest of the batch.
func (p *Processor) HandleBatch(ctx context.Context, messages []Message) []string {
	p.log.Info("Processing batch of %d message(s)", len(messages))

	var failed []string

	for _, message := range messages {
		_, err := p.Process(ctx, message)
		if err != nil {
			failed = append(failed, message.ID)
		}
	}

	if len(failed) > 0 {
		p.log.Warn("Batch finished with %d failed message(s): %v", len(failed), failed)
	}

	return failed
}

// HandleSQSEvent adapts HandleBatch to the SQS partial batch response contract.
func (p *Processor) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	messages := make([]Message, 0, len(event.Records))
	for _, record := range event.Records {
		messages = append(messages, Message{ID: record.MessageId, Body: []byte(record.Body)})
	}

	response := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, id := range p.HandleBatch(ctx, messages) {
		response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}

	return response, nil
}

// Process handles one message end to end. Every error is logged with the
// message id and, once the descriptor is known, its bucket and key.
func (p *Processor) Process(ctx context.Context, message Message) (Result, error) {
	descriptor, err := job.Decode(message.Body)
	if err != nil {
		p.log.Error("Rejected message %s: %v", message.ID, err)

		return Result{}, err
	}

	result, err := p.convert(ctx, descriptor)
	if err != nil {
		p.log.Error("Failed to process %s from bucket %s (message %s): %v",
			descriptor.Key, descriptor.Bucket, message.ID, err)

		return Result{}, err
	}

	p.log.Info("Wrote %s (%d bytes) for %s (message %s)",
		result.OutputKey, result.AudioBytes, result.InputKey, message.ID)

	return result, nil
}

func (p *Processor) convert(ctx context.Context, descriptor job.Descriptor) (Result, error) {
	data, err := p.store.Download(ctx, descriptor.Bucket, descriptor.Key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download '%s': %w", descriptor.Key, err)
	}

	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrEmptyInput, descriptor.Key)
	}

	text, err := p.extractors.Text(data, descriptor.Key)
	if err != nil {
		return Result{}, fmt.Errorf("failed to extract text from '%s': %w", descriptor.Key, err)
	}

	text, truncated := job.Truncate(text)
	if truncated {
		p.log.Warn("Text from %s truncated to %d characters", descriptor.Key, job.MaxTextLength)
	}

	audio, err := p.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("failed to synthesize '%s': %w", descriptor.Key, err)
	}

	outputKey := job.OutputKey(descriptor.Key)

	err = p.store.Upload(ctx, p.outputBucket, outputKey, audio, job.AudioContentType)
	if err != nil {
		return Result{}, fmt.Errorf("failed to upload '%s': %w", outputKey, err)
	}

	return Result{
		InputKey:   descriptor.Key,
		OutputKey:  outputKey,
		AudioBytes: len(audio),
		Truncated:  truncated,
	}, nil
}
