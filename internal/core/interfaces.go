// Package core defines the service interfaces the pollypress components are wired against.
package core

import (
	"context"
	"time"
)

// ObjectStore defines the interface for interacting with a bucketed blob store.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Presigner issues time-boxed capability URLs for a single object operation.
type Presigner interface {
	PresignPut(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error)
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// Publisher enqueues a message body onto the processing queue.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// SynthesisConfig holds the fixed voice parameters for a synthesis call.
type SynthesisConfig struct {
	VoiceID      string
	Engine       string
	LanguageCode string
}

// Synthesizer defines the interface for a text-to-speech engine that returns MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
