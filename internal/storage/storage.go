// Package storage reads uploaded objects from S3, MinIO or a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// MaxObjectBytes bounds how much of an object is read into memory. It is
// above every per-block limit of the inference API, so anything larger is
// rejected later anyway.
const MaxObjectBytes = 16 << 20

var (
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrObjectTooLarge is returned when the object exceeds MaxObjectBytes.
	ErrObjectTooLarge = errors.New("object too large")
)

// ObjectRef identifies an object by bucket and decoded key.
type ObjectRef struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Key    string `json:"key" yaml:"key"`
}

func (r ObjectRef) String() string {
	if r.Bucket == "" {
		return r.Key
	}
	return r.Bucket + "/" + r.Key
}

// Object is an object read fully into memory.
type Object struct {
	Ref         ObjectRef
	Data        []byte
	ContentType string
	ETag        string
}

// ObjectStore reads objects.
type ObjectStore interface {
	Get(ctx context.Context, ref ObjectRef) (*Object, error)
}

// readAll reads r up to MaxObjectBytes.
func readAll(r io.Reader, ref ObjectRef) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrObjectTooLarge, ref, MaxObjectBytes)
	}
	return data, nil
}
