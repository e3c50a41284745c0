// Package objectstore provides a NATS JetStream implementation of the
// ObjectStore interface for publishing rendered media artifacts.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store implements core.ObjectStore on a JetStream object store bucket.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New creates a store over the named bucket, creating the bucket when it does
// not exist yet and binding to it when it does.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Store, error) {
	store, err := ensureBucket(jetstreamContext, bucketName)
	if err != nil {
		return nil, err
	}

	return &Store{
		bucket: bucketName,
		store:  store,
	}, nil
}

func ensureBucket(jetstreamContext nats.JetStreamContext, bucketName string) (nats.ObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Rendered media artifacts for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err == nil {
		return store, nil
	}

	if !errors.Is(err, jetstream.ErrBucketExists) {
		return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
	}

	store, err = jetstreamContext.ObjectStore(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
	}

	return store, nil
}

// Download retrieves an object from the bucket.
func (s *Store) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := s.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, err)
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

// Upload saves an object into the bucket.
func (s *Store) Upload(_ context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := s.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}
