package adapter

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	m "rads.dev/pkg/rads/internal/model"
)

// cacheSchema is bumped whenever the counting rules change so stale entries are ignored.
const cacheSchema = "v1"

// CachedScan is the content-derived part of a file scan. Path, entry point and
// usage flags depend on the build and are never cached.
type CachedScan struct {
	Counters    m.CounterBlock
	Suppression m.Suppression
}

// ScanCache stores scan results keyed by file content.
type ScanCache interface {
	Get(ctx context.Context, key string) (CachedScan, bool, error)
	Put(ctx context.Context, key string, entry CachedScan) error
	Close() error
}

// ScanCacheKey derives the cache key from the content hash and the options that
// change counting.
func ScanCacheKey(contentHash string, includeTests bool) string {
	tests := "0"
	if includeTests {
		tests = "1"
	}

	return fmt.Sprintf("scan/%s/%s/tests=%s", cacheSchema, contentHash, tests)
}

// CacheConfig configures the badger backed cache.
type CacheConfig struct {
	// Dir holds the database files. Ignored when InMemory is true.
	Dir      string
	InMemory bool
	// TTL expires entries after the given duration when positive.
	TTL    time.Duration
	Logger *slog.Logger
}

// BadgerScanCache is a ScanCache persisted in BadgerDB.
type BadgerScanCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerScanCache opens (or creates) the cache database.
func NewBadgerScanCache(cfg CacheConfig) (*BadgerScanCache, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}

		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithNumVersionsToKeep(1).WithSyncWrites(false)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open scan cache: %w", err)
	}

	return &BadgerScanCache{db: db, ttl: cfg.TTL}, nil
}

// Get looks up a cached scan.
func (c *BadgerScanCache) Get(ctx context.Context, key string) (CachedScan, bool, error) {
	var entry CachedScan

	if err := ctx.Err(); err != nil {
		return entry, false, err
	}

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return CachedScan{}, false, nil
	}

	if err != nil {
		return CachedScan{}, false, fmt.Errorf("read scan cache: %w", err)
	}

	return entry, true, nil
}

// Put stores a scan result.
func (c *BadgerScanCache) Put(ctx context.Context, key string, entry CachedScan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("encode scan cache entry: %w", err)
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), buf.Bytes())
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}

		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write scan cache: %w", err)
	}

	return nil
}

// Close releases the database.
func (c *BadgerScanCache) Close() error {
	return c.db.Close()
}

// NopScanCache never hits and discards writes.
type NopScanCache struct{}

// Get always misses.
func (NopScanCache) Get(context.Context, string) (CachedScan, bool, error) {
	return CachedScan{}, false, nil
}

// Put does nothing.
func (NopScanCache) Put(context.Context, string, CachedScan) error { return nil }

// Close does nothing.
func (NopScanCache) Close() error { return nil }

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
