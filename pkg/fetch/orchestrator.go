package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

// Config holds the collaborators shared by orchestrators.
type Config struct {
	// Store is the response cache (required)
	Store cache.Store

	// Transport performs network calls (required)
	Transport transport.Transport

	// Namespace is the single cache namespace the orchestrator opens
	Namespace string

	// BackoffUnit scales the retry delay: 2^n units before retry n
	BackoffUnit time.Duration

	// DefaultInit is merged under Options.Init on every request
	DefaultInit transport.Init

	// Now returns the current time for expiration checks
	Now func() time.Time

	// Logger receives orchestrator logs
	Logger zerolog.Logger
}

// DefaultConfig returns a configuration with the default namespace and a
// one second backoff unit.
func DefaultConfig(store cache.Store, tr transport.Transport) Config {
	return Config{
		Store:       store,
		Transport:   tr,
		Namespace:   cache.DefaultNamespace,
		BackoffUnit: time.Second,
		Now:         time.Now,
		Logger:      log.With().Str("component", "datafetch").Logger(),
	}
}

// Orchestrator runs the cache-check, fetch and retry state machine for one
// request and publishes its State.
//
// Only one attempt chain is current at a time. Starting a new chain (Start,
// Reconfigure with a new identity, Refetch) cancels the previous call, clears
// the retry timer and resets the retry budget. Results of cancelled or
// superseded attempts are discarded.
type Orchestrator[T any] struct {
	id     uuid.UUID
	config Config
	logger zerolog.Logger
	feed   *feed[T]

	mu         sync.Mutex
	opts       Options[T]
	state      State[T]
	handle     cache.Handle
	baseCtx    context.Context
	cancel     context.CancelFunc
	stopWatch  func() bool
	retry      *retryScheduler
	generation uint64
	attempts   int
	mounted    bool
	started    bool
	closed     bool
	inFlight   bool
	settled    bool
	idle       chan struct{}
}

// New creates an orchestrator. The initial state carries the optimistic data,
// if any, with Loading set. Nothing runs until Start or Subscribe; once either
// was called the orchestrator owns a goroutine until Close (or the end of the
// Start context).
func New[T any](cfg Config, opts Options[T]) (*Orchestrator[T], error) {
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Transport == nil {
		return nil, ErrNilTransport
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if cfg.Namespace == "" {
		cfg.Namespace = cache.DefaultNamespace
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	id := uuid.New()
	o := &Orchestrator[T]{
		id:     id,
		config: cfg,
		logger: cfg.Logger.With().Str("instance", id.String()).Logger(),
		feed:   newFeed[T](),
		opts:   opts,
		state: State[T]{
			Data:    opts.OptimisticData,
			Loading: true,
		},
		retry: newRetryScheduler(cfg.BackoffUnit),
		idle:  make(chan struct{}),
	}

	return o, nil
}

// ID returns the instance identifier used in logs.
func (o *Orchestrator[T]) ID() uuid.UUID {
	return o.id
}

// Start opens the cache namespace and runs the first attempt.
// Cancelling ctx tears the orchestrator down like Close.
func (o *Orchestrator[T]) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.mu.Unlock()

	handle, err := o.config.Store.Open(ctx, o.config.Namespace)
	if err != nil {
		cache.CacheErrors.WithLabelValues("open").Inc()
		return fmt.Errorf("open cache namespace %q: %w", o.config.Namespace, err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.started = true
	o.handle = handle
	o.baseCtx = ctx
	o.stopWatch = context.AfterFunc(ctx, o.Close)
	o.feed.start()
	run := o.restartLocked("mount")
	o.mu.Unlock()

	go o.run(run)
	return nil
}

// Reconfigure replaces the options. When the request identity (URL,
// InvalidateCache, cache key, Expiration, Init) changed and the orchestrator
// is running, the current chain is cancelled and a new one starts; the result
// reports whether that happened. Other fields take effect immediately.
func (o *Orchestrator[T]) Reconfigure(opts Options[T]) (bool, error) {
	if err := opts.validate(); err != nil {
		return false, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false, ErrClosed
	}

	changed := !sameIdentity(o.opts, opts)
	o.opts = opts

	if !changed || !o.started {
		o.mu.Unlock()
		return false, nil
	}

	run := o.restartLocked("reconfigure")
	o.mu.Unlock()

	go o.run(run)
	return true, nil
}

// Refetch starts a new attempt chain with the current options.
func (o *Orchestrator[T]) Refetch() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if !o.started {
		o.mu.Unlock()
		return ErrNotStarted
	}

	run := o.restartLocked("refetch")
	o.mu.Unlock()

	go o.run(run)
	return nil
}

// State returns the current state.
func (o *Orchestrator[T]) State() State[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers p for every state published from now on.
// Projectors run on a dedicated goroutine, one state at a time.
func (o *Orchestrator[T]) Subscribe(p Projector[T]) (unsubscribe func()) {
	return o.feed.subscribe(func(s State[T]) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().Interface("panic", r).Msg("State projector panicked")
			}
		}()
		p(s)
	})
}

// Wait blocks until no attempt is in flight and no retry is pending, then
// returns the state. Returns ctx.Err() with the current state if ctx ends first.
func (o *Orchestrator[T]) Wait(ctx context.Context) (State[T], error) {
	for {
		o.mu.Lock()
		settled := o.settled
		idle := o.idle
		state := o.state
		o.mu.Unlock()

		if settled {
			return state, nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Done returns a channel closed once the orchestrator is closed and every
// state published before Close has been delivered to subscribers.
func (o *Orchestrator[T]) Done() <-chan struct{} {
	return o.feed.done
}

// Close tears the orchestrator down: the in-flight call is cancelled, the
// retry timer cleared, and no further state is published.
func (o *Orchestrator[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.generation++
	if o.inFlight {
		fetchCancelledTotal.Inc()
	}
	if o.cancel != nil {
		o.cancel()
	}
	if o.stopWatch != nil {
		o.stopWatch()
	}
	o.retry.stop()
	o.inFlight = false
	o.settleLocked()
	o.mu.Unlock()

	o.feed.close()
	o.logger.Debug().Msg("Orchestrator closed")
}

// restartLocked begins a new attempt chain. Callers hold o.mu and must run
// the returned attempt.
func (o *Orchestrator[T]) restartLocked(reason string) *attemptRun[T] {
	o.generation++
	if o.inFlight {
		fetchCancelledTotal.Inc()
	}
	o.retry.reset(o.opts.Retry)
	o.attempts = 0

	o.logger.Debug().
		Str("reason", reason).
		Str("url", o.opts.URL).
		Str("cache_key", o.opts.Key()).
		Uint64("generation", o.generation).
		Msg("Starting attempt chain")

	return o.beginLocked()
}

// beginLocked prepares one attempt of the current chain with a fresh
// cancellation token and publishes the loading state.
func (o *Orchestrator[T]) beginLocked() *attemptRun[T] {
	if o.cancel != nil {
		o.cancel()
	}
	ctx, cancel := context.WithCancel(o.baseCtx)
	o.cancel = cancel

	o.attempts++
	first := !o.mounted
	o.mounted = true

	// Optimistic data makes the state usable before the first attempt resolves.
	o.state.Loading = !(first && o.opts.OptimisticData != nil)
	o.inFlight = true
	o.busyLocked()
	o.feed.push(o.state)

	return &attemptRun[T]{
		gen:     o.generation,
		ctx:     ctx,
		opts:    o.opts,
		handle:  o.handle,
		attempt: o.attempts,
	}
}

// currentLocked reports whether results of generation gen may still be applied.
func (o *Orchestrator[T]) currentLocked(gen uint64) bool {
	return gen == o.generation && !o.closed && o.baseCtx.Err() == nil
}

func (o *Orchestrator[T]) isCurrent(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentLocked(gen)
}

// update applies mutate and publishes, unless gen is no longer current.
func (o *Orchestrator[T]) update(gen uint64, mutate func(*State[T])) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.currentLocked(gen) {
		return false
	}
	mutate(&o.state)
	o.feed.push(o.state)
	return true
}

func (o *Orchestrator[T]) busyLocked() {
	if o.settled {
		o.idle = make(chan struct{})
		o.settled = false
	}
}

func (o *Orchestrator[T]) settleLocked() {
	if !o.settled {
		close(o.idle)
		o.settled = true
	}
}
