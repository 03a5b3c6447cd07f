package fetch

import (
	"sort"
	"sync"
)

// State is the observable result of an orchestrator.
type State[T any] struct {
	// Data is the last resolved value, or the optimistic placeholder
	Data *T

	// Loading is true while an attempt is in flight
	Loading bool

	// Err is set once the attempt chain ended in a failure
	Err error
}

// Projector consumes every published state, in publication order.
type Projector[T any] func(State[T])

// feed delivers published states to projectors on its own goroutine, so
// projectors may call back into the orchestrator. The goroutine starts with
// the first subscribe or start call and exits after close.
type feed[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []State[T]
	subs    map[int]Projector[T]
	nextID  int
	running bool
	closed  bool
	done    chan struct{}
}

func newFeed[T any]() *feed[T] {
	f := &feed[T]{
		subs: make(map[int]Projector[T]),
		done: make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// start launches the delivery goroutine unless it runs already or the feed
// is closed.
func (f *feed[T]) start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startLocked()
}

func (f *feed[T]) startLocked() {
	if f.running || f.closed {
		return
	}
	f.running = true
	go f.run()
}

func (f *feed[T]) push(s State[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, s)
	f.cond.Signal()
}

func (f *feed[T]) subscribe(p Projector[T]) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs[id] = p
	f.startLocked()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// close stops accepting states; queued states are still delivered. A feed
// that never started has nobody to deliver to and is done at once.
func (f *feed[T]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if !f.running {
		f.queue = nil
		close(f.done)
		return
	}
	f.cond.Broadcast()
}

func (f *feed[T]) run() {
	defer close(f.done)

	for {
		f.mu.Lock()
		for len(f.queue) == 0 && !f.closed {
			f.cond.Wait()
		}
		if len(f.queue) == 0 {
			f.mu.Unlock()
			return
		}

		s := f.queue[0]
		f.queue = f.queue[1:]

		ids := make([]int, 0, len(f.subs))
		for id := range f.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		projectors := make([]Projector[T], 0, len(ids))
		for _, id := range ids {
			projectors = append(projectors, f.subs[id])
		}
		f.mu.Unlock()

		for _, p := range projectors {
			p(s)
		}
	}
}
