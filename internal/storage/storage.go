// Package storage persists uploaded image bytes under server-generated keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrInvalidKey = errors.New("invalid storage key")
	ErrExists     = errors.New("object already exists")
)

// Store is a flat blob namespace addressed by "<area>/<name>" keys.
type Store interface {
	// Put writes r under key. It never overwrites an existing object.
	Put(ctx context.Context, key string, r io.Reader) error
	// Delete removes key. A key that is already gone is not an error.
	Delete(ctx context.Context, key string) error
	// URL is the public address the browser loads the image from.
	URL(key string) string
	Health(ctx context.Context) error
}

// ValidateKey accepts only clean, relative, slash-separated keys of the form
// "<dir>/<file>" with no traversal segments.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
