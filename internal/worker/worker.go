// Package worker provides the self-hosted NATS runtime for pollypress: it
// feeds MinIO bucket notifications to the receiver and drives the processor
// from a JetStream pull consumer.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/processor"
	"github.com/book-expert/pollypress/internal/queue"
	"github.com/book-expert/pollypress/internal/receiver"
	"github.com/nats-io/nats.go"
)

const (
	handleEventTimeout = 30 * time.Second
	eventAckWait       = 2 * handleEventTimeout
	workQueueMaxAge    = 96 * time.Hour
	deadLetterMaxAge   = 14 * 24 * time.Hour
	eventsSuffix       = "-events"

	headerError     = "Pollypress-Error"
	headerMessageID = "Pollypress-Message-Id"
)

// ErrStorageEventInvalid indicates a storage notification that is not S3-event JSON.
var ErrStorageEventInvalid = errors.New("invalid storage event")

// Settings holds the subjects and delivery policy of the worker.
type Settings struct {
	StreamName           string
	ConsumerName         string
	Subject              string
	DeadLetterSubject    string
	StorageEventsSubject string
	BatchSize            int
	MaxDeliver           int
	AckWait              time.Duration
	FetchWait            time.Duration
	ProcessTimeout       time.Duration
	EventRetryDelay      time.Duration
}

// StreamSpec returns the JetStream layout the worker consumes from.
func (s Settings) StreamSpec() queue.StreamSpec {
	return queue.StreamSpec{
		Name:                 s.StreamName,
		Subject:              s.Subject,
		DeadLetterSubject:    s.DeadLetterSubject,
		StorageEventsSubject: s.StorageEventsSubject,
		MaxAge:               workQueueMaxAge,
		DeadLetterMaxAge:     deadLetterMaxAge,
	}
}

// EventsConsumerName is the durable queue consumer shared by all workers for
// storage notifications.
func (s Settings) EventsConsumerName() string {
	return s.ConsumerName + eventsSuffix
}

// NatsWorker listens for storage events and queued jobs on NATS.
type NatsWorker struct {
	jetstreamContext nats.JetStreamContext
	settings         Settings
	receiver         *receiver.Receiver
	processor        *processor.Processor
	log              *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	jetstreamContext nats.JetStreamContext,
	settings Settings,
	eventReceiver *receiver.Receiver,
	jobProcessor *processor.Processor,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		jetstreamContext: jetstreamContext,
		settings:         settings,
		receiver:         eventReceiver,
		processor:        jobProcessor,
		log:              log,
	}, nil
}

// Run creates the streams, consumes storage events and pulls jobs until ctx
// is cancelled. Both subscriptions are drained on shutdown.
func (w *NatsWorker) Run(ctx context.Context) error {
	spec := w.settings.StreamSpec()

	err := queue.EnsureStreams(w.jetstreamContext, spec)
	if err != nil {
		return err
	}

	eventSub, err := w.jetstreamContext.QueueSubscribe(
		w.settings.StorageEventsSubject,
		w.settings.EventsConsumerName(),
		w.handleStorageEvent,
		nats.Durable(w.settings.EventsConsumerName()),
		nats.BindStream(spec.EventsStreamName()),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(eventAckWait),
		nats.MaxDeliver(w.settings.MaxDeliver),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.settings.StorageEventsSubject, err)
	}

	jobSub, err := w.jetstreamContext.PullSubscribe(
		w.settings.Subject,
		w.settings.ConsumerName,
		nats.BindStream(w.settings.StreamName),
		nats.AckExplicit(),
		nats.AckWait(w.settings.AckWait),
		nats.MaxDeliver(w.settings.MaxDeliver),
	)
	if err != nil {
		_ = eventSub.Drain()

		return fmt.Errorf("failed to create pull consumer %s: %w", w.settings.ConsumerName, err)
	}

	w.log.Info("Worker listening on %s and consuming %s", w.settings.StorageEventsSubject, w.settings.Subject)

	w.consume(ctx, jobSub)

	drainErr := errors.Join(eventSub.Drain(), jobSub.Drain())
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) consume(ctx context.Context, jobSub *nats.Subscription) {
	for ctx.Err() == nil {
		messages, err := jobSub.Fetch(w.settings.BatchSize, nats.MaxWait(w.settings.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}

			if ctx.Err() != nil {
				return
			}

			w.log.Error("Failed to fetch jobs: %v", err)

			continue
		}

		w.handleJobs(ctx, messages)
	}
}

func (w *NatsWorker) handleJobs(ctx context.Context, messages []*nats.Msg) {
	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.settings.ProcessTimeout)
	defer cancel()

	batch := make([]processor.Message, 0, len(messages))
	byID := make(map[string]*nats.Msg, len(messages))

	for index, msg := range messages {
		id := messageID(msg, index)
		batch = append(batch, processor.Message{ID: id, Body: msg.Data})
		byID[id] = msg
	}

	failed := make(map[string]bool)
	for _, id := range w.processor.HandleBatch(batchCtx, batch) {
		failed[id] = true
	}

	for id, msg := range byID {
		if !failed[id] {
			ackErr := msg.Ack()
			if ackErr != nil {
				w.log.Error("Failed to ack message %s: %v", id, ackErr)
			}

			continue
		}

		w.settle(id, msg)
	}
}

// settle returns a failed job to the stream after the visibility delay, or
// moves it to the dead-letter subject once it has used up its deliveries.
func (w *NatsWorker) settle(id string, msg *nats.Msg) {
	metadata, err := msg.Metadata()
	if err != nil || metadata.NumDelivered < uint64(w.settings.MaxDeliver) {
		w.nak(id, msg, w.settings.AckWait)

		return
	}

	deadLetter := nats.NewMsg(w.settings.DeadLetterSubject)
	deadLetter.Data = msg.Data
	deadLetter.Header.Set(headerMessageID, id)
	deadLetter.Header.Set(headerError, "max deliveries reached")

	_, err = w.jetstreamContext.PublishMsg(deadLetter)
	if err != nil {
		w.log.Error("Failed to dead-letter message %s: %v", id, err)
		w.nak(id, msg, w.settings.AckWait)

		return
	}

	w.log.Warn("Message %s moved to %s after %d deliveries", id, w.settings.DeadLetterSubject, metadata.NumDelivered)

	termErr := msg.Term()
	if termErr != nil {
		w.log.Error("Failed to terminate message %s: %v", id, termErr)
	}
}

func (w *NatsWorker) nak(id string, msg *nats.Msg, delay time.Duration) {
	nakErr := msg.NakWithDelay(delay)
	if nakErr != nil {
		w.log.Error("Failed to nak message %s: %v", id, nakErr)
	}
}

// handleStorageEvent acks a notification once every record is queued. A
// failed record naks the whole notification so it is redelivered, as an S3
// trigger would be.
func (w *NatsWorker) handleStorageEvent(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleEventTimeout)
	defer cancel()

	id := messageID(msg, 0)

	var event events.S3Event

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Dropping storage event %s: %v", id, fmt.Errorf("%w: %w", ErrStorageEventInvalid, err))

		termErr := msg.Term()
		if termErr != nil {
			w.log.Error("Failed to terminate storage event %s: %v", id, termErr)
		}

		return
	}

	err = w.receiver.HandleS3Event(ctx, event)
	if err == nil {
		ackErr := msg.Ack()
		if ackErr != nil {
			w.log.Error("Failed to ack storage event %s: %v", id, ackErr)
		}

		return
	}

	metadata, metaErr := msg.Metadata()
	if metaErr == nil && metadata.NumDelivered >= uint64(w.settings.MaxDeliver) {
		w.log.Error("Giving up on storage event %s after %d deliveries: %v", id, metadata.NumDelivered, err)

		termErr := msg.Term()
		if termErr != nil {
			w.log.Error("Failed to terminate storage event %s: %v", id, termErr)
		}

		return
	}

	w.log.Warn("Storage event %s will be redelivered in %s: %v", id, w.settings.EventRetryDelay, err)
	w.nak(id, msg, w.settings.EventRetryDelay)
}

// messageID identifies msg by its stream sequence. Messages without JetStream
// metadata fall back to their subject and position in the batch.
func messageID(msg *nats.Msg, index int) string {
	metadata, err := msg.Metadata()
	if err != nil {
		return msg.Subject + "#" + strconv.Itoa(index)
	}

	return strconv.FormatUint(metadata.Sequence.Stream, 10)
}

// SettingsFromConfig maps the [queue] configuration section onto worker settings.
func SettingsFromConfig(queueConfig config.QueueConfig) Settings {
	return Settings{
		StreamName:           queueConfig.StreamName,
		ConsumerName:         queueConfig.ConsumerName,
		Subject:              queueConfig.Subject,
		DeadLetterSubject:    queueConfig.DeadLetterSubject,
		StorageEventsSubject: queueConfig.StorageEventsSubject,
		BatchSize:            queueConfig.BatchSize,
		MaxDeliver:           queueConfig.MaxDeliver,
		AckWait:              queueConfig.AckWait(),
		FetchWait:            queueConfig.FetchWait(),
		ProcessTimeout:       queueConfig.ProcessTimeout(),
		EventRetryDelay:      queueConfig.EventRetryDelay(),
	}
}
