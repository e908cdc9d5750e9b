// Package blob stores rendered documents that are too large to inline
// in a result row. The filesystem implementation is the single-node
// default; the reference format is an opaque key so an object-store
// implementation can replace it without touching callers.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
	"github.com/tailorhq/resume-tailor-api/internal/pipeline"
)

// FSStore keeps blobs as files under a root directory, keyed by a
// slash-separated relative path.
type FSStore struct {
	dir string
}

// NewFSStore creates a blob store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("blob store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// MustNewFSStore creates a blob store, panicking on failure.
func MustNewFSStore(dir string) *FSStore {
	s, err := NewFSStore(dir)
	if err != nil {
		panic(err)
	}
	return s
}

// Put implements pipeline.BlobStore. Writes go through a temp file and
// rename so a crash never leaves a torn blob behind the returned
// reference.
func (s *FSStore) Put(_ context.Context, key string, data []byte) (string, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return key, nil
}

// Get implements pipeline.BlobStore.
func (s *FSStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundf("blob %q not found", ref)
		}
		return nil, err
	}
	return data, nil
}

// pathFor maps a key to a path under the root, rejecting keys that
// would escape it.
func (s *FSStore) pathFor(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", apperrors.Validationf("invalid blob key: %q", key)
	}
	return filepath.Join(s.dir, cleaned), nil
}

var _ pipeline.BlobStore = (*FSStore)(nil)
