// Package job defines the queue descriptor passed from the storage-event
// receiver to the processor, and the pure key and text rules both sides share.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/pollypress/internal/validate"
)

// TimestampLayout is the ISO-8601 form written into descriptors (UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidDescriptor is returned when a descriptor fails schema validation.
var ErrInvalidDescriptor = errors.New("invalid queue descriptor")

var descriptorValidator = validate.New()

// Descriptor is the queue message body: a reference to an uploaded input object.
type Descriptor struct {
	Bucket    string `json:"bucket"    validate:"required"`
	Key       string `json:"key"       validate:"required"`
	FileSize  int64  `json:"fileSize"  validate:"gt=0"`
	Timestamp string `json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// NewDescriptor builds a descriptor stamped with the given time.
func NewDescriptor(bucket, key string, fileSize int64, now time.Time) Descriptor {
	return Descriptor{
		Bucket:    bucket,
		Key:       key,
		FileSize:  fileSize,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// Validate checks the descriptor against its schema.
func (d Descriptor) Validate() error {
	err := descriptorValidator.Struct(d)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDescriptor, validate.Summary(validate.Issues(err)))
	}

	return nil
}

// Encode validates the descriptor and renders it as a queue message body.
func (d Descriptor) Encode() ([]byte, error) {
	err := d.Validate()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	return body, nil
}

// Decode parses and validates a queue message body.
func Decode(body []byte) (Descriptor, error) {
	var descriptor Descriptor

	err := json.Unmarshal(body, &descriptor)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: failed to unmarshal body: %w", ErrInvalidDescriptor, err)
	}

	err = descriptor.Validate()
	if err != nil {
		return Descriptor{}, err
	}

	return descriptor, nil
}
