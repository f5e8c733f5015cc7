// Package pkg provides reusable utilities for rads.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSpill is an append-only, disk-backed list of gob-encoded items. Large
// audits collect one entry per scanned file, so results are spilled instead of
// kept in memory until aggregation.
type FileSpill[T any] interface {
	Len() uint64
	Append(item T) error
	Range(f func(index uint64, item T) error) error
	Close() error
}

// SpillOption configures NewFileSpill.
type SpillOption func(*spillConfig)

type spillConfig struct {
	dir string
}

// WithDir places the spill file in dir instead of the system temp directory.
// An empty dir keeps the default.
func WithDir(dir string) SpillOption {
	return func(c *spillConfig) {
		if dir != "" {
			c.dir = dir
		}
	}
}

type fileSpillImpl[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
	closed  bool
}

// Append implements FileSpill.
func (f *fileSpillImpl[T]) Append(item T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("append to closed spill %s", f.path)
	}

	if err := f.encoder.Encode(item); err != nil {
		slog.Error("failed to encode item", "path", f.path, "index", f.length, "error", err)
		return fmt.Errorf("failed to encode item: %w", err)
	}

	f.length++

	return nil
}

// Close implements FileSpill and removes the backing file.
func (f *fileSpillImpl[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}

	f.closed = true

	if err := f.file.Close(); err != nil {
		slog.Error("failed to close file", "path", f.path, "error", err)
		return err
	}

	slog.Debug("closed filespill", "path", f.path, "length", f.length)

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spill file: %w", err)
	}

	return nil
}

// Len implements FileSpill.
func (f *fileSpillImpl[T]) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.length
}

// Range implements FileSpill. Items are decoded into fresh values so gob never
// merges fields of consecutive items.
func (f *fileSpillImpl[T]) Range(fn func(index uint64, item T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("range over closed spill %s", f.path)
	}

	file, err := os.Open(f.path)
	if err != nil {
		slog.Error("failed to open file for range", "path", f.path, "error", err)
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close file", "path", f.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := uint64(0); i < f.length; i++ {
		var item T
		if err := decoder.Decode(&item); err != nil {
			slog.Error("failed to decode item during range", "path", f.path, "index", i, "error", err)
			return fmt.Errorf("failed to decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// NewFileSpill creates a new FileSpill for items of type T.
func NewFileSpill[T any](opts ...SpillOption) (FileSpill[T], error) {
	cfg := spillConfig{dir: filepath.Join(os.TempDir(), "rads-spill")}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(cfg.dir, 0o750); err != nil {
		slog.Error("failed to create spill directory", "path", cfg.dir, "error", err)
		return nil, fmt.Errorf("failed to create spill directory: %w", err)
	}

	file, err := os.CreateTemp(cfg.dir, "spill-*.gob")
	if err != nil {
		slog.Error("failed to create temp file", "path", cfg.dir, "error", err)
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	slog.Debug("created filespill", "path", file.Name())

	return &fileSpillImpl[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}
