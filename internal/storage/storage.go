// Package storage keeps uploaded files (completion photos, lease documents)
// in S3-compatible object storage or, when none is configured, a local
// directory. Callers only ever see opaque keys.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that would escape the store's root.
var ErrInvalidKey = errors.New("invalid object key")

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh key under prefix that keeps the lower-cased
// extension of filename, e.g. "photos/3f0c…e1.jpg".
func NewKey(prefix, filename string) string {
	return path.Join(prefix, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
}

// InFolder reports whether key names an object directly inside folder,
// spelled without "." or ".." segments.
func InFolder(folder, key string) bool {
	return key != "" && path.Clean(key) == key && path.Dir(key) == folder
}

func validKey(key string) bool {
	return key != "" && filepath.IsLocal(filepath.FromSlash(key))
}

// New returns an S3 store when cfg is complete and a disk store rooted at
// dir otherwise.
func New(cfg S3Config, dir string) (Store, error) {
	if cfg.Enabled() {
		return NewS3Store(cfg), nil
	}
	return NewDiskStore(dir)
}
