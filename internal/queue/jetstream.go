package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// StreamSpec describes the JetStream streams backing the processing queue.
type StreamSpec struct {
	Name                 string
	Subject              string
	DeadLetterSubject    string
	StorageEventsSubject string
	MaxAge               time.Duration
	DeadLetterMaxAge     time.Duration
}

// DeadLetterStreamName returns the name of the stream holding dead letters.
func (s StreamSpec) DeadLetterStreamName() string {
	return s.Name + "_DLQ"
}

// EventsStreamName returns the name of the stream holding storage notifications.
func (s StreamSpec) EventsStreamName() string {
	return s.Name + "_EVENTS"
}

// EnsureStreams creates the work-queue stream, its dead-letter stream and,
// when StorageEventsSubject is set, the storage-event stream. Existing
// streams are left as they are.
func EnsureStreams(jetstreamContext nats.JetStreamContext, spec StreamSpec) error {
	err := ensureStream(jetstreamContext, &nats.StreamConfig{
		Name:      spec.Name,
		Subjects:  []string{spec.Subject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    spec.MaxAge,
	})
	if err != nil {
		return err
	}

	err = ensureStream(jetstreamContext, &nats.StreamConfig{
		Name:      spec.DeadLetterStreamName(),
		Subjects:  []string{spec.DeadLetterSubject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    spec.DeadLetterMaxAge,
	})
	if err != nil {
		return err
	}

	if spec.StorageEventsSubject == "" {
		return nil
	}

	return ensureStream(jetstreamContext, &nats.StreamConfig{
		Name:      spec.EventsStreamName(),
		Subjects:  []string{spec.StorageEventsSubject},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    spec.MaxAge,
	})
}

func ensureStream(jetstreamContext nats.JetStreamContext, streamConfig *nats.StreamConfig) error {
	_, err := jetstreamContext.StreamInfo(streamConfig.Name)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream '%s': %w", streamConfig.Name, err)
	}

	_, err = jetstreamContext.AddStream(streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", streamConfig.Name, err)
	}

	return nil
}

// JetStreamPublisher publishes message bodies to a JetStream subject and
// waits for the stream to acknowledge them.
type JetStreamPublisher struct {
	jetstreamContext nats.JetStreamContext
	subject          string
}

// NewJetStreamPublisher creates a publisher for subject.
func NewJetStreamPublisher(jetstreamContext nats.JetStreamContext, subject string) *JetStreamPublisher {
	return &JetStreamPublisher{jetstreamContext: jetstreamContext, subject: subject}
}

// Publish stores body in the stream bound to the publisher's subject.
func (p *JetStreamPublisher) Publish(ctx context.Context, body []byte) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}

	_, err := p.jetstreamContext.Publish(p.subject, body, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", p.subject, err)
	}

	return nil
}
