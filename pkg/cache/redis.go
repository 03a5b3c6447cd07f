package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds optional RedisStore settings.
type RedisConfig struct {
	// Retain is the Redis TTL applied on write. Zero keeps entries until
	// they are overwritten; expiration is decided on read, not by Redis.
	Retain time.Duration
}

// RedisStore shares entries between processes through Redis.
type RedisStore struct {
	redis  *redis.Client
	config RedisConfig
}

// NewRedisStore creates a store with Redis backend.
func NewRedisStore(redisClient *redis.Client, cfg RedisConfig) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		config: cfg,
	}
}

// Open returns a handle scoped to namespace. Namespaces need no setup in Redis.
func (s *RedisStore) Open(ctx context.Context, namespace string) (Handle, error) {
	return &redisHandle{store: s, namespace: namespace}, nil
}

// Ping checks connectivity to the backing Redis server.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

type redisHandle struct {
	store     *RedisStore
	namespace string
}

// Match retrieves an entry by key.
// Returns ErrCacheMiss if the key doesn't exist.
func (h *redisHandle) Match(ctx context.Context, key string) (*Entry, error) {
	redisKey := Key{Namespace: h.namespace, Name: key}.String()

	data, err := h.store.redis.Get(ctx, redisKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("match").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return &entry, nil
}

// Put stores an entry, overwriting the previous value (last write wins).
func (h *redisHandle) Put(ctx context.Context, key string, entry *Entry, opts PutOptions) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	stored := *entry
	if opts.Expiration != "" {
		stored.Expiration = opts.Expiration
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	redisKey := Key{Namespace: h.namespace, Name: key}.String()
	if err := h.store.redis.Set(ctx, redisKey, data, h.store.config.Retain).Err(); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheWrites.WithLabelValues("redis").Inc()
	return nil
}

var _ Store = (*RedisStore)(nil)
