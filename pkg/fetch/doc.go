// Package fetch orchestrates cached, retried data fetches.
//
// An Orchestrator owns one request. Each attempt checks the cache, optionally
// serves stale data, calls the Transport, stores cacheable responses and
// publishes a State. Failed attempts are retried with exponential backoff
// while the retry budget lasts.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//	cfg := fetch.DefaultConfig(store, transport.NewHTTP(transport.DefaultConfig()))
//
//	o, err := fetch.New(cfg, fetch.Options[Person]{
//		URL:   "https://swapi.dev/api/people/2",
//		Retry: 3,
//	})
//	if err != nil {
//		return err
//	}
//	defer o.Close()
//
//	unsubscribe := o.Subscribe(func(s fetch.State[Person]) {
//		fmt.Println(s.Loading, s.Data, s.Err)
//	})
//	defer unsubscribe()
//
//	if err := o.Start(ctx); err != nil {
//		return err
//	}
//	state, err := o.Wait(ctx)
//
// For a single request without subscriptions use Fetch:
//
//	state, err := fetch.Fetch(ctx, cfg, fetch.Options[Person]{URL: url})
//
// # Cache Behavior
//
// A fresh entry is served without a network call. A stale entry is ignored
// unless UseStaleCache is set, in which case it is published first and the
// network response replaces it. Successful responses are stored only when they
// carry a Cache-Control header or Options.Expiration is set.
//
// # Retries
//
// HTTP errors are retried while budget remains. Transport and parse failures
// are retried only when OnError is registered. The delay before retry n is
// 2^n * Config.BackoffUnit. State.Err is set once no retry is scheduled.
//
// # Cancellation
//
// Reconfigure with a changed request identity, Refetch and Close cancel the
// in-flight call. Results of cancelled attempts never reach the state, the
// cache or callbacks, even when the Transport ignores the context.
package fetch
