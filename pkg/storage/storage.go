package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned when an object doesn't exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrNoCredentials is returned when a store is opened without keys.
var ErrNoCredentials = errors.New("storage: missing credentials")

// ErrTooLarge is returned when an object exceeds the size limit.
var ErrTooLarge = errors.New("storage: object too large")

// MaxObjectSize caps how much of an object Get reads.
const MaxObjectSize = 32 << 20

// Store is the interface for résumé storage backends.
// A Store is bound to one set of credentials.
type Store interface {
	// List returns every object in bucket whose key starts with prefix.
	// Keys are returned decoded.
	List(ctx context.Context, bucket, prefix string) ([]Object, error)

	// Get reads a whole object.
	Get(ctx context.Context, bucket, key string) (*File, error)

	// Put stores r under key, replacing any existing object.
	Put(ctx context.Context, bucket, key, contentType string, size int64, r io.Reader) error

	// URL returns a time-limited link for viewing an object.
	URL(ctx context.Context, bucket, key string) (string, error)
}

// Credentials are the session-scoped keys the server hands out.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Valid reports whether both key parts are present.
func (c Credentials) Valid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Factory opens a Store with the given credentials.
type Factory func(ctx context.Context, creds Credentials) (Store, error)

// Object describes one stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// File is a fetched object.
type File struct {
	Key         string
	ContentType string
	Data        []byte
}

// Error records a failed storage operation.
type Error struct {
	Op   string
	Key  string
	Code string // backend error code, if any
	Err  error
}

func (e *Error) Error() string {
	msg := "storage: " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" (%s)", e.Code)
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// readLimited buffers at most max bytes of r. max <= 0 means no limit.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}
