package fetch

import (
	"reflect"
	"time"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

// Options describes one request and how its result is cached and retried.
type Options[T any] struct {
	// URL of the resource (required)
	URL string

	// Init holds request options merged over Config.DefaultInit
	Init transport.Init

	// OptimisticData is published as Data before the first attempt resolves
	OptimisticData *T

	// UseStaleCache serves expired cache entries while refreshing from the network
	UseStaleCache bool

	// Retry is the number of retries after the first failed attempt (default 0)
	Retry int

	// OnError is called for every failed attempt. Registering it also enables
	// retries for transport and parse failures.
	OnError func(error)

	// InvalidateCache skips the cache lookup. Successful responses are still written.
	InvalidateCache bool

	// CacheKey overrides the cache slot (defaults to URL)
	CacheKey string

	// Expiration overrides the Cache-Control max-age when non-nil, zero included
	Expiration *time.Duration

	// ErrorHandlers maps HTTP status codes to callbacks
	ErrorHandlers map[int]func(error)
}

// Seconds returns an explicit expiration of n seconds for Options.Expiration.
// Values beyond the range of time.Duration are clamped.
func Seconds(n int) *time.Duration {
	d := cache.Seconds(int64(n))
	return &d
}

// Key returns the cache slot for these options.
func (o Options[T]) Key() string {
	if o.CacheKey != "" {
		return o.CacheKey
	}
	return o.URL
}

func (o Options[T]) validate() error {
	if o.URL == "" {
		return ErrURLRequired
	}
	if o.Retry < 0 {
		return ErrNegativeRetry
	}
	return nil
}

// sameIdentity reports whether a and b address the same request. Changing any
// of URL, InvalidateCache, cache key, Expiration or Init restarts the attempt chain.
func sameIdentity[T any](a, b Options[T]) bool {
	if a.URL != b.URL || a.InvalidateCache != b.InvalidateCache || a.Key() != b.Key() {
		return false
	}

	switch {
	case a.Expiration == nil && b.Expiration == nil:
	case a.Expiration == nil || b.Expiration == nil:
		return false
	case *a.Expiration != *b.Expiration:
		return false
	}

	return reflect.DeepEqual(a.Init, b.Init)
}
