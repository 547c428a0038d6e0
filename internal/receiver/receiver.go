// Package receiver turns object-creation notifications for the input prefix
// into job descriptors on the processing queue.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/core"
	"github.com/book-expert/pollypress/internal/job"
)

const objectCreatedEvent = "ObjectCreated"

// ErrInvalidObjectKey is returned when a notification key cannot be URL-decoded.
var ErrInvalidObjectKey = errors.New("invalid object key in notification")

// Receiver enqueues one descriptor per uploaded input object.
type Receiver struct {
	publisher core.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// New creates a receiver that publishes descriptors through publisher.
func New(publisher core.Publisher, log *logger.Logger) *Receiver {
	return &Receiver{publisher: publisher, log: log, now: time.Now}
}

// WithClock replaces the time source used for descriptor timestamps.
func (r *Receiver) WithClock(now func() time.Time) *Receiver {
	r.now = now

	return r
}

// HandleS3Event enqueues every object-creation record in event. It stops at
// the first failure and returns it so the trigger redelivers the notification.
func (r *Receiver) HandleS3Event(ctx context.Context, event events.S3Event) error {
	r.log.Info("Received storage event with %d record(s)", len(event.Records))

	for _, record := range event.Records {
		if record.EventName != "" && !strings.Contains(record.EventName, objectCreatedEvent) {
			r.log.Info("Skipping %s notification for key %s", record.EventName, record.S3.Object.Key)

			continue
		}

		err := r.HandleObject(ctx, record.S3.Bucket.Name, record.S3.Object.Key, record.S3.Object.Size)
		if err != nil {
			r.log.Error("Failed to enqueue object %s from bucket %s: %v",
				record.S3.Object.Key, record.S3.Bucket.Name, err)

			return err
		}
	}

	return nil
}

// HandleObject decodes rawKey, builds a descriptor and publishes it. Keys
// outside the input prefix are ignored.
func (r *Receiver) HandleObject(ctx context.Context, bucket, rawKey string, size int64) error {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidObjectKey, rawKey, err)
	}

	if !strings.HasPrefix(key, job.InputPrefix) {
		r.log.Warn("Ignoring object %s outside of the %s prefix", key, job.InputPrefix)

		return nil
	}

	descriptor := job.NewDescriptor(bucket, key, size, r.now())

	body, err := descriptor.Encode()
	if err != nil {
		return fmt.Errorf("failed to build descriptor for key '%s': %w", key, err)
	}

	err = r.publisher.Publish(ctx, body)
	if err != nil {
		return fmt.Errorf("failed to enqueue key '%s': %w", key, err)
	}

	r.log.Info("Queued %s (%d bytes) from bucket %s", key, size, bucket)

	return nil
}
