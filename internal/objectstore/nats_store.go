// Package objectstore provides a NATS JetStream object store implementation of
// core.ObjectStore for self-hosted deployments without S3.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const contentTypeHeader = "Content-Type"

// NatsObjectStore maps every bucket name onto a JetStream object store bucket
// of the same name, created on first use.
type NatsObjectStore struct {
	jetstreamContext nats.JetStreamContext
	mu               sync.Mutex
	buckets          map[string]nats.ObjectStore
}

// New creates a NatsObjectStore and eagerly binds the given buckets.
func New(jetstreamContext nats.JetStreamContext, bucketNames ...string) (*NatsObjectStore, error) {
	store := &NatsObjectStore{
		jetstreamContext: jetstreamContext,
		mu:               sync.Mutex{},
		buckets:          make(map[string]nats.ObjectStore, len(bucketNames)),
	}

	for _, name := range bucketNames {
		_, err := store.bucket(name)
		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

func (n *NatsObjectStore) bucket(name string) (nats.ObjectStore, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	existing, ok := n.buckets[name]
	if ok {
		return existing, nil
	}

	// Use a "create-first" approach.
	store, err := n.jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      name,
		Description: fmt.Sprintf("pollypress objects for the %s bucket.", name),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", name, err)
		}

		store, err = n.jetstreamContext.ObjectStore(name)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", name, err)
		}
	}

	n.buckets[name] = store

	return store, nil
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, bucket, key string) ([]byte, error) {
	store, err := n.bucket(bucket)
	if err != nil {
		return nil, err
	}

	obj, err := store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store. The content type travels
// as an object header.
func (n *NatsObjectStore) Upload(_ context.Context, bucket, key string, data []byte, contentType string) error {
	store, err := n.bucket(bucket)
	if err != nil {
		return err
	}

	headers := nats.Header{}
	if contentType != "" {
		headers.Set(contentTypeHeader, contentType)
	}

	_, err = store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     headers,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, bucket, err)
	}

	return nil
}

// Exists reports whether key is present in bucket.
func (n *NatsObjectStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	store, err := n.bucket(bucket)
	if err != nil {
		return false, err
	}

	_, err = store.GetInfo(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat object '%s' in bucket '%s': %w", key, bucket, err)
	}

	return true, nil
}
