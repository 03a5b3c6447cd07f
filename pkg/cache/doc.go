// Package cache provides the response store used by the fetch orchestrator.
//
// The package covers three concerns:
//
// - The Store/Handle contract: a key-addressed store split into namespaces,
// with Match (read) and Put (overwrite) operations
// - Store implementations: MemoryStore (process local), RedisStore (shared
// through Redis) and NullStore (never stores)
// - Expiration evaluation: ExpiresAt and ParseMaxAge derive freshness from an
// explicit duration or the Cache-Control max-age directive
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Open the namespace
//	store := cache.NewRedisStore(redisClient, cache.RedisConfig{})
//	handle, err := store.Open(ctx, cache.DefaultNamespace)
//
//	// Get from cache
//	entry, err := handle.Match(ctx, "https://swapi.dev/api/people/2")
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the network
//	}
//
// # Freshness
//
//	expiresAt := cache.ExpiresAt(nil, entry.CacheControl(), time.Now())
//	if cache.IsFresh(expiresAt, time.Now()) {
//		// Serve entry.Body without a network call
//	}
//
// Stores never evict entries on their own. An entry is only replaced by a
// later Put for the same key.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - datafetch_cache_hits_total{freshness} - Cache hits (fresh, stale)
//   - datafetch_cache_misses_total - Cache misses
//   - datafetch_cache_writes_total{store} - Successful writes
//   - datafetch_cache_errors_total{operation} - Cache operation errors
package cache
