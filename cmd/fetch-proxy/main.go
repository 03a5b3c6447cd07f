// Command fetch-proxy serves cached, retried fetches over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/datafetch/pkg/cache"
	"github.com/Sternrassler/datafetch/pkg/config"
	"github.com/Sternrassler/datafetch/pkg/fetch"
	"github.com/Sternrassler/datafetch/pkg/logging"
	"github.com/Sternrassler/datafetch/pkg/metrics"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

func main() {
	cfg := config.DefaultConfig()
	if path := os.Getenv("DATAFETCH_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid environment: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging("fetch-proxy"))

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	storeKind := "memory"
	if cfg.Redis.Addr != "" {
		storeKind = "redis"
	}
	logger.Info().Str("store", storeKind).Str("namespace", cfg.Cache.Namespace).Msg("Cache store ready")

	fetchCfg := fetch.DefaultConfig(store, transport.NewHTTP(cfg.HTTPTransport()))
	fetchCfg.Namespace = cfg.Cache.Namespace
	fetchCfg.BackoffUnit = cfg.Fetch.BackoffUnit.Duration
	fetchCfg.Logger = logging.NewLogger("datafetch")

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newMux(fetchCfg, store, cfg.Fetch.Retry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("user_agent", cfg.Transport.UserAgent).
			Msg("Starting fetch proxy server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down fetch proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMux(fetchCfg fetch.Config, store cache.Store, defaultRetry int) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(store))
	mux.HandleFunc("/fetch", fetchHandler(fetchCfg, defaultRetry))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type pinger interface {
	Ping(ctx context.Context) error
}

// readyHandler reports whether the cache backend is reachable. Stores
// without a backend are always ready.
func readyHandler(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := p.Ping(ctx); err != nil {
				http.Error(w, fmt.Sprintf("cache store unavailable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// fetchResponse is the JSON body of /fetch.
type fetchResponse struct {
	Data    json.RawMessage `json:"data"`
	Loading bool            `json:"loading"`
	Error   *string         `json:"error"`
}

func fetchHandler(fetchCfg fetch.Config, defaultRetry int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		opts, err := parseOptions(r, defaultRetry)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		state, err := fetch.Fetch(r.Context(), fetchCfg, opts)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			http.Error(w, fmt.Sprintf("fetch failed: %v", err), status)
			return
		}

		body := fetchResponse{Loading: state.Loading, Data: json.RawMessage("null")}
		if state.Data != nil {
			body.Data = *state.Data
		}

		status := http.StatusOK
		if state.Err != nil {
			msg := state.Err.Error()
			body.Error = &msg
			status = http.StatusBadGateway
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			fetchCfg.Logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

func parseOptions(r *http.Request, defaultRetry int) (fetch.Options[json.RawMessage], error) {
	q := r.URL.Query()

	opts := fetch.Options[json.RawMessage]{
		URL:      q.Get("url"),
		Retry:    defaultRetry,
		CacheKey: q.Get("cache_key"),
	}
	if opts.URL == "" {
		return opts, errors.New("missing url parameter")
	}

	if v := q.Get("retry"); v != "" {
		retry, err := strconv.Atoi(v)
		if err != nil || retry < 0 {
			return opts, fmt.Errorf("invalid retry %q", v)
		}
		opts.Retry = retry
	}

	if v := q.Get("expiration"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			return opts, fmt.Errorf("invalid expiration %q", v)
		}
		opts.Expiration = fetch.Seconds(seconds)
	}

	var err error
	if opts.UseStaleCache, err = parseBool(q.Get("stale")); err != nil {
		return opts, fmt.Errorf("invalid stale: %w", err)
	}
	if opts.InvalidateCache, err = parseBool(q.Get("invalidate")); err != nil {
		return opts, fmt.Errorf("invalid invalidate: %w", err)
	}

	return opts, nil
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
