// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects as files under a root directory. Object keys map
// to paths below the root, and URLs are the key under "/".
type Local struct {
	root string
}

// NewLocal creates a disk store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Local{root: dir}, nil
}

// Root returns the directory files are stored in.
func (l *Local) Root() string {
	return l.root
}

// path resolves key under the root, rejecting keys that escape it.
func (l *Local) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Upload writes body to the file for key. contentType is not stored;
// it is inferred from the extension when serving.
func (l *Local) Upload(ctx context.Context, key, _ string, body io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("local upload %s: %w", key, err)
	}

	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("local upload %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("local upload %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("local upload %s: %w", key, err)
	}
	return nil
}

// Download reads the file for key.
func (l *Local) Download(_ context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("local download %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the file for key. Missing files are not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local delete %s: %w", key, err)
	}
	return nil
}

// FileURL returns the site-relative URL of key.
func (l *Local) FileURL(key string) string {
	return "/" + strings.TrimLeft(key, "/")
}
