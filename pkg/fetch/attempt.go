package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

// attemptRun is the snapshot one attempt works from.
type attemptRun[T any] struct {
	gen     uint64
	ctx     context.Context
	opts    Options[T]
	handle  cache.Handle
	attempt int
}

func (o *Orchestrator[T]) run(r *attemptRun[T]) {
	start := time.Now()
	res := o.attempt(r)
	o.complete(r, res, time.Since(start))
}

// attempt performs one cache check and network call. It publishes intermediate
// cache data but leaves callbacks, retries and the final state to complete.
func (o *Orchestrator[T]) attempt(r *attemptRun[T]) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error().
				Str("cache_key", r.opts.Key()).
				Int("attempt", r.attempt).
				Interface("panic", p).
				Msg("Attempt panicked")
			res = Result[T]{Outcome: OutcomeUnrecognized}
		}
	}()

	key := r.opts.Key()
	logger := o.logger.With().Str("cache_key", key).Int("attempt", r.attempt).Logger()
	now := o.config.Now()

	if r.opts.InvalidateCache {
		cache.CacheMisses.Inc()
		logger.Debug().Msg("Cache lookup skipped")
	} else {
		hit, done, err := o.checkCache(r, logger, key, now)
		if err != nil {
			return Result[T]{Outcome: OutcomeParseError, Err: err}
		}
		if done {
			return Result[T]{Outcome: OutcomeCacheHit, Data: hit}
		}
		if !o.isCurrent(r.gen) {
			return Result[T]{Outcome: OutcomeAborted}
		}
	}

	req := transport.Request{
		URL:  r.opts.URL,
		Init: o.config.DefaultInit.Merge(r.opts.Init),
	}
	resp, err := o.config.Transport.Fetch(r.ctx, req)
	if !o.isCurrent(r.gen) {
		return Result[T]{Outcome: OutcomeAborted}
	}
	if err != nil {
		return Result[T]{Outcome: OutcomeTransportError, Err: &TransportError{Err: err}}
	}
	if resp == nil {
		return Result[T]{Outcome: OutcomeTransportError, Err: &TransportError{Err: errors.New("nil response")}}
	}

	if !resp.OK() {
		return Result[T]{
			Outcome:    OutcomeHTTPError,
			Err:        &HTTPError{StatusCode: resp.StatusCode, StatusText: resp.StatusText},
			StatusCode: resp.StatusCode,
		}
	}

	stored := o.store(r, logger, key, resp)

	var data T
	if err := resp.Decode(&data); err != nil {
		return Result[T]{Outcome: OutcomeParseError, Err: &ParseError{Err: err}, StatusCode: resp.StatusCode, Stored: stored}
	}

	return Result[T]{Outcome: OutcomeNetwork, Data: &data, StatusCode: resp.StatusCode, Stored: stored}
}

// checkCache looks the key up and publishes usable cached data. done is true
// when the entry is fresh and stale serving is off, so no network call is needed.
func (o *Orchestrator[T]) checkCache(r *attemptRun[T], logger zerolog.Logger, key string, now time.Time) (data *T, done bool, err error) {
	entry, matchErr := r.handle.Match(r.ctx, key)
	if matchErr != nil {
		if !errors.Is(matchErr, cache.ErrCacheMiss) {
			cache.CacheErrors.WithLabelValues("match").Inc()
			logger.Warn().Err(matchErr).Msg("Cache lookup failed, treating as miss")
		}
		cache.CacheMisses.Inc()
		logger.Debug().Msg("Cache miss")
		return nil, false, nil
	}

	expiresAt := cache.ExpiresAt(r.opts.Expiration, entry.CacheControl(), now)
	fresh := cache.IsFresh(expiresAt, now)

	freshness := "stale"
	if fresh {
		freshness = "fresh"
	}
	cache.CacheHits.WithLabelValues(freshness).Inc()
	logger.Debug().
		Str("freshness", freshness).
		Time("expires_at", expiresAt).
		Msg("Cache hit")

	if !fresh && !r.opts.UseStaleCache {
		return nil, false, nil
	}

	var value T
	if err := entry.Decode(&value); err != nil {
		return nil, false, &ParseError{Err: err}
	}

	o.update(r.gen, func(s *State[T]) {
		s.Data = &value
		s.Loading = false
	})

	if fresh && !r.opts.UseStaleCache {
		return &value, true, nil
	}
	return &value, false, nil
}

// store writes a successful response when it carries a Cache-Control header
// or an explicit expiration was requested. Failures are logged, never returned.
func (o *Orchestrator[T]) store(r *attemptRun[T], logger zerolog.Logger, key string, resp *transport.Response) bool {
	cacheControl := resp.Header.Get("Cache-Control")

	var hint string
	switch {
	case r.opts.Expiration != nil:
		hint = strconv.FormatInt(int64(*r.opts.Expiration/time.Second), 10)
	case cacheControl != "":
		hint = cacheControl
	default:
		return false
	}

	entry := &cache.Entry{
		StatusCode: resp.StatusCode,
		StatusText: resp.StatusText,
		Header:     resp.Header.Clone(),
		Body:       append([]byte(nil), resp.Body...),
		CachedAt:   o.config.Now(),
	}

	if err := r.handle.Put(r.ctx, key, entry, cache.PutOptions{Expiration: hint}); err != nil {
		cache.CacheErrors.WithLabelValues("put").Inc()
		logger.Warn().Err(err).Msg("Failed to store response")
		return false
	}

	logger.Debug().Str("expiration", hint).Msg("Response stored")
	return true
}

// complete applies an attempt result: callbacks, retry scheduling and the
// final state of the attempt.
func (o *Orchestrator[T]) complete(r *attemptRun[T], res Result[T], elapsed time.Duration) {
	fetchAttemptsTotal.WithLabelValues(string(res.Outcome)).Inc()
	fetchAttemptDuration.Observe(elapsed.Seconds())

	logger := o.logger.With().
		Str("cache_key", r.opts.Key()).
		Str("url", r.opts.URL).
		Int("attempt", r.attempt).
		Logger()

	if res.Outcome == OutcomeAborted || !o.isCurrent(r.gen) {
		logger.Debug().Str("outcome", string(res.Outcome)).Msg("Discarding superseded attempt")
		return
	}

	if !res.Failed() {
		o.finish(r.gen, func(s *State[T]) {
			if res.Outcome != OutcomeUnrecognized {
				s.Data = res.Data
				s.Err = nil
			}
		})
		logger.Debug().
			Str("outcome", string(res.Outcome)).
			Bool("stored", res.Stored).
			Dur("duration", elapsed).
			Msg("Attempt resolved")
		return
	}

	class := ClassifyError(res.Err)
	fetchErrorsTotal.WithLabelValues(string(class)).Inc()

	o.mu.Lock()
	opts := o.opts
	o.mu.Unlock()

	if opts.OnError != nil {
		o.invoke("on_error", opts.OnError, res.Err)
	}
	if class == ErrorClassHTTP {
		if handler, ok := opts.ErrorHandlers[res.StatusCode]; ok && handler != nil {
			o.invoke("status_"+strconv.Itoa(res.StatusCode), handler, res.Err)
		}
	}

	retryable := class == ErrorClassHTTP || opts.OnError != nil

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(r.gen) {
		return
	}

	scheduled := false
	if retryable {
		if delay, ok := o.retry.next(); ok {
			gen := r.gen
			o.retry.arm(delay, func() { o.fireRetry(gen) })
			scheduled = true

			fetchRetriesTotal.WithLabelValues(string(class)).Inc()
			fetchRetryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())
			logger.Warn().
				Err(res.Err).
				Str("error_class", string(class)).
				Dur("backoff", delay).
				Int("status", res.StatusCode).
				Msg("Attempt failed, retrying")
		} else if o.retry.total > 0 {
			fetchRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
		}
	}

	if !scheduled {
		o.state.Err = res.Err
		logger.Error().
			Err(res.Err).
			Str("error_class", string(class)).
			Int("status", res.StatusCode).
			Bool("retryable", retryable).
			Msg("Fetch failed")
	}

	o.state.Loading = false
	o.inFlight = false
	if !scheduled {
		o.settleLocked()
	}
	o.feed.push(o.state)
}

// finish applies the last state change of a chain and marks it settled.
func (o *Orchestrator[T]) finish(gen uint64, mutate func(*State[T])) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(gen) {
		return
	}
	mutate(&o.state)
	o.state.Loading = false
	o.inFlight = false
	o.settleLocked()
	o.feed.push(o.state)
}

// fireRetry runs the next attempt of chain gen, unless it was superseded.
func (o *Orchestrator[T]) fireRetry(gen uint64) {
	o.mu.Lock()
	if !o.currentLocked(gen) {
		o.mu.Unlock()
		return
	}
	o.retry.fired()
	run := o.beginLocked()
	o.mu.Unlock()

	o.run(run)
}

// invoke calls a user callback, logging instead of propagating a panic.
func (o *Orchestrator[T]) invoke(name string, fn func(error), err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error().
				Str("callback", name).
				Str("panic", fmt.Sprint(p)).
				Msg("Callback panicked")
		}
	}()
	fn(err)
}
