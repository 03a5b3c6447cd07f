package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries are never evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]*Entry),
	}
}

// Open returns a handle for namespace, creating it on first use.
func (s *MemoryStore) Open(ctx context.Context, namespace string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[namespace]; !ok {
		s.namespaces[namespace] = make(map[string]*Entry)
	}
	return &memoryHandle{store: s, namespace: namespace}, nil
}

// Len returns the number of entries stored in namespace.
func (s *MemoryStore) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

type memoryHandle struct {
	store     *MemoryStore
	namespace string
}

func (h *memoryHandle) Match(ctx context.Context, key string) (*Entry, error) {
	h.store.mu.RLock()
	entry, ok := h.store.namespaces[h.namespace][key]
	h.store.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return entry.Clone(), nil
}

func (h *memoryHandle) Put(ctx context.Context, key string, entry *Entry, opts PutOptions) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	stored := entry.Clone()
	if opts.Expiration != "" {
		stored.Expiration = opts.Expiration
	}

	h.store.mu.Lock()
	ns, ok := h.store.namespaces[h.namespace]
	if !ok {
		ns = make(map[string]*Entry)
		h.store.namespaces[h.namespace] = ns
	}
	ns[key] = stored
	h.store.mu.Unlock()

	CacheWrites.WithLabelValues("memory").Inc()
	return nil
}

// NullStore never stores anything. Every Match is a miss.
type NullStore struct{}

// Open returns a handle that discards writes.
func (NullStore) Open(ctx context.Context, namespace string) (Handle, error) {
	return nullHandle{}, nil
}

type nullHandle struct{}

func (nullHandle) Match(ctx context.Context, key string) (*Entry, error) {
	return nil, ErrCacheMiss
}

func (nullHandle) Put(ctx context.Context, key string, entry *Entry, opts PutOptions) error {
	return nil
}

// Ensure the stores implement Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = NullStore{}
)
