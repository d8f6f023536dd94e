package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage provides the local key/value cache used by the employee cache decorator.

// Store keeps expiring values grouped in buckets.
type Store interface {
	Close() error
	Get(bucket, key string) ([]byte, bool, error)
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	Purge(bucket string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = time.Minute
	defaultCleanupInterval = 10 * time.Minute
)

// Supported store types.
const (
	TypeNone  = "none"
	TypeBBolt = "bbolt"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// Enabled reports whether typ selects a real backend.
func Enabled(typ string) bool {
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", TypeNone, "disabled":
		return false
	}
	return true
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                              { return nil }
func (noopStore) Get(string, string) ([]byte, bool, error) { return nil, false, nil }
func (noopStore) Put(string, string, []byte) error          { return nil }
func (noopStore) Delete(string, string) error               { return nil }
func (noopStore) Purge(string) error                        { return nil }
