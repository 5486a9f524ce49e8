package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves objects from a directory. The bucket is ignored; keys
// are slash-separated paths below Root.
type LocalStore struct {
	Root string
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Root: dir}
}

// Path returns the file path for key, refusing keys that escape Root.
func (s *LocalStore) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes store root", key)
	}
	return filepath.Join(s.Root, clean), nil
}

// Get reads the whole file.
func (s *LocalStore) Get(ctx context.Context, ref ObjectRef) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Path(ref.Key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	data, err := readAll(f, ref)
	if err != nil {
		return nil, err
	}
	return &Object{
		Ref:         ref,
		Data:        data,
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
	}, nil
}
