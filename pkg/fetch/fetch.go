package fetch

import (
	"context"
)

// Fetch runs a single orchestrated request to completion, retries included,
// and returns the settled state. Fetch failures are reported in State.Err;
// the returned error covers invalid options, cache errors and ctx ending.
func Fetch[T any](ctx context.Context, cfg Config, opts Options[T]) (State[T], error) {
	o, err := New(cfg, opts)
	if err != nil {
		return State[T]{}, err
	}
	defer o.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := o.Start(runCtx); err != nil {
		return State[T]{}, err
	}

	return o.Wait(ctx)
}
