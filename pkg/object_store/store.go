package object_store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrBucketNotFound is returned when the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrObjectNotFound is returned when the object does not exist.
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
	Updated     time.Time
	Created     time.Time
}

// Store is the subset of an object storage API the service needs.
type Store interface {
	// List returns every object in bucket.
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	// Stat returns metadata for one object.
	Stat(ctx context.Context, bucket, name string) (*ObjectInfo, error)
	// Open streams the object content. The caller closes the reader.
	Open(ctx context.Context, bucket, name string) (io.ReadCloser, error)
	// Put creates or replaces an object.
	Put(ctx context.Context, bucket, name, contentType string, data []byte) error
	// Delete removes an object.
	Delete(ctx context.Context, bucket, name string) error
}

// Options configures New.
type Options struct {
	Driver          string
	Endpoint        string
	Region          string
	AccessKey       string
	SecretKey       string
	UsePathStyle    bool
	HeadConcurrency int
}

// New builds the store selected by opts.Driver.
func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "s3", "":
		return NewS3Store(ctx, opts)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// ReadAll reads an entire object into memory.
func ReadAll(ctx context.Context, s Store, bucket, name string) ([]byte, error) {
	rc, err := s.Open(ctx, bucket, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
