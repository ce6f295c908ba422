package storage

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps objects in memory. It backs tests and offline runs.
type MemoryStore struct {
	mu      sync.RWMutex
	maxSize int64
	buckets map[string]map[string]memObject
	now     func() time.Time
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryStore creates an empty store. maxSize of 0 means no limit.
func NewMemoryStore(maxSize int64) *MemoryStore {
	return &MemoryStore{
		maxSize: maxSize,
		buckets: make(map[string]map[string]memObject),
		now:     time.Now,
	}
}

// MemoryFactory returns a Factory that hands out s to anyone presenting
// credentials.
func MemoryFactory(s *MemoryStore) Factory {
	return func(ctx context.Context, creds Credentials) (Store, error) {
		if !creds.Valid() {
			return nil, &Error{Op: "open", Err: ErrNoCredentials}
		}
		return s, nil
	}
}

// List returns objects under prefix sorted by key.
func (s *MemoryStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for key, obj := range s.buckets[bucket] {
		if strings.HasPrefix(key, prefix) {
			out = append(out, Object{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get returns a copy of the object contents.
func (s *MemoryStore) Get(ctx context.Context, bucket, key string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.buckets[bucket][key]
	s.mu.RUnlock()
	if !ok {
		return nil, &Error{Op: "get", Key: key, Err: ErrNotFound}
	}
	return &File{
		Key:         key,
		ContentType: obj.contentType,
		Data:        append([]byte(nil), obj.data...),
	}, nil
}

// Put stores r under key.
func (s *MemoryStore) Put(ctx context.Context, bucket, key, contentType string, size int64, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.maxSize > 0 && size > s.maxSize {
		return &Error{Op: "put", Key: key, Err: ErrTooLarge}
	}
	data, err := readLimited(r, s.maxSize)
	if err != nil {
		return &Error{Op: "put", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		objects = make(map[string]memObject)
		s.buckets[bucket] = objects
	}
	objects[key] = memObject{data: data, contentType: contentType, modified: s.now()}
	return nil
}

// URL returns a memory:// link for an existing object.
func (s *MemoryStore) URL(ctx context.Context, bucket, key string) (string, error) {
	s.mu.RLock()
	_, ok := s.buckets[bucket][key]
	s.mu.RUnlock()
	if !ok {
		return "", &Error{Op: "presign", Key: key, Err: ErrNotFound}
	}
	u := url.URL{Scheme: "memory", Host: bucket, Path: "/" + key}
	return u.String(), nil
}
