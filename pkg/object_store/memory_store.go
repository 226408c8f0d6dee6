package object_store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type memoryObject struct {
	info ObjectInfo
	data []byte
}

// MemoryStore keeps buckets in process memory. Buckets must be created with
// CreateBucket before use.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memoryObject
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]*memoryObject),
		now:     time.Now,
	}
}

// CreateBucket adds bucket if it does not exist.
func (m *MemoryStore) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]*memoryObject)
	}
}

// List returns the objects of bucket sorted by name.
func (m *MemoryStore) List(_ context.Context, bucket string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	out := make([]ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		out = append(out, obj.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat returns metadata for one object.
func (m *MemoryStore) Stat(_ context.Context, bucket, name string) (*ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, err := m.lookup(bucket, name)
	if err != nil {
		return nil, err
	}
	info := obj.info
	return &info, nil
}

// Open returns a reader over a copy of the object.
func (m *MemoryStore) Open(_ context.Context, bucket, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, err := m.lookup(bucket, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// Put stores data, keeping the creation time of a replaced object.
func (m *MemoryStore) Put(_ context.Context, bucket, name, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}

	now := m.now().UTC()
	created := now
	if prev, ok := objects[name]; ok {
		created = prev.info.Created
	}
	objects[name] = &memoryObject{
		info: ObjectInfo{
			Name:        name,
			Size:        int64(len(data)),
			ContentType: contentType,
			Updated:     now,
			Created:     created,
		},
		data: append([]byte(nil), data...),
	}
	return nil
}

// Delete removes one object.
func (m *MemoryStore) Delete(_ context.Context, bucket, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.lookup(bucket, name); err != nil {
		return err
	}
	delete(m.buckets[bucket], name)
	return nil
}

func (m *MemoryStore) lookup(bucket, name string) (*memoryObject, error) {
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
	}
	obj, ok := objects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, name)
	}
	return obj, nil
}
