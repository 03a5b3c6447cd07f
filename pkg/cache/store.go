package cache

import (
	"context"
	"errors"
)

// DefaultNamespace is the namespace the orchestrator opens when none is configured.
const DefaultNamespace = "datafetch"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a key-addressed response store split into namespaces.
type Store interface {
	// Open returns a handle scoped to namespace.
	Open(ctx context.Context, namespace string) (Handle, error)
}

// Handle reads and writes entries inside one namespace.
type Handle interface {
	// Match returns the entry stored under key, or ErrCacheMiss.
	Match(ctx context.Context, key string) (*Entry, error)

	// Put stores entry under key, overwriting any previous entry.
	Put(ctx context.Context, key string, entry *Entry, opts PutOptions) error
}

// PutOptions carries the optional third argument of a store write.
type PutOptions struct {
	// Expiration is recorded on the entry; stores do not evict on it.
	Expiration string
}
