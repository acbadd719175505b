package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// MetadataOriginalName is the object metadata key holding the client's
// file name before sanitizing.
const MetadataOriginalName = "original-name"

// ObjectStore writes uploaded objects.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, object string, r io.Reader, metadata map[string]string) error
}

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a store for bucket. An empty credentialsFile uses
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (s *GCSStore) Bucket() string { return s.bucket }

// Put streams r into the named object.
func (s *GCSStore) Put(ctx context.Context, object string, r io.Reader, metadata map[string]string) error {
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.Metadata = metadata

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s: %w", object, err)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// MemoryStore keeps objects in memory.
type MemoryStore struct {
	bucket string

	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store reporting bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:   bucket,
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

// Bucket returns the bucket name.
func (s *MemoryStore) Bucket() string { return s.bucket }

// Put stores the object.
func (s *MemoryStore) Put(ctx context.Context, object string, r io.Reader, metadata map[string]string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[object] = buf.Bytes()
	s.metadata[object] = maps.Clone(metadata)
	return nil
}

// Object returns a stored object and its metadata.
func (s *MemoryStore) Object(name string) ([]byte, map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[name]
	return data, s.metadata[name], ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
