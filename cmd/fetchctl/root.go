package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/datafetch/pkg/config"
	"github.com/Sternrassler/datafetch/pkg/fetch"
	"github.com/Sternrassler/datafetch/pkg/logging"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

// ErrFetchFailed is returned when the final state carries an error.
var ErrFetchFailed = errors.New("fetch failed")

type rootOptions struct {
	configPath string
	verbose    bool
}

type getOptions struct {
	retry      int
	expiration int
	stale      bool
	invalidate bool
	cacheKey   string
	headers    []string
	method     string
	data       string
	redis      string
}

// stateLine is one printed state.
type stateLine struct {
	Data    json.RawMessage `json:"data"`
	Loading bool            `json:"loading"`
	Error   *string         `json:"error"`
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "fetchctl",
		Short:         "Fetch URLs through the datafetch cache and retry orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newGetCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fetchctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fetchctl %s\n", version)
		},
	}
}

func newGetCmd(root *rootOptions) *cobra.Command {
	opts := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Fetch a URL and print every state as a JSON line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.retry, "retry", -1, "number of retries after a failed attempt (default from config)")
	flags.IntVar(&opts.expiration, "expiration", -1, "explicit expiration in seconds (overrides max-age)")
	flags.BoolVar(&opts.stale, "stale", false, "serve stale cache entries while refreshing")
	flags.BoolVar(&opts.invalidate, "invalidate", false, "skip the cache lookup")
	flags.StringVar(&opts.cacheKey, "cache-key", "", "cache slot (defaults to the URL)")
	flags.StringArrayVar(&opts.headers, "header", nil, "request header as Key:Value (repeatable)")
	flags.StringVar(&opts.method, "method", "", "request method (default GET)")
	flags.StringVar(&opts.data, "data", "", "request body")
	flags.StringVar(&opts.redis, "redis", "", "Redis address for a shared cache (default in-memory)")

	return cmd
}

func loadConfig(root *rootOptions, get *getOptions) (config.Config, error) {
	cfg := config.DefaultConfig()
	if root.configPath != "" {
		loaded, err := config.Load(root.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if get.redis != "" {
		cfg.Redis.Addr = get.redis
	}
	if root.verbose {
		cfg.Log.Level = string(logging.LevelDebug)
	}
	return cfg, cfg.Validate()
}

func buildOptions(get *getOptions, url string, defaultRetry int) (fetch.Options[json.RawMessage], error) {
	opts := fetch.Options[json.RawMessage]{
		URL:             url,
		Retry:           defaultRetry,
		UseStaleCache:   get.stale,
		InvalidateCache: get.invalidate,
		CacheKey:        get.cacheKey,
		Init: transport.Init{
			Method: strings.ToUpper(get.method),
		},
	}

	switch {
	case get.retry >= 0:
		opts.Retry = get.retry
	case get.retry < -1:
		return opts, fmt.Errorf("invalid --retry %d", get.retry)
	}
	if get.expiration >= 0 {
		opts.Expiration = fetch.Seconds(get.expiration)
	}
	if get.data != "" {
		opts.Init.Body = []byte(get.data)
		if opts.Init.Method == "" {
			opts.Init.Method = http.MethodPost
		}
	}

	for _, h := range get.headers {
		key, value, ok := strings.Cut(h, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return opts, fmt.Errorf("invalid --header %q, expected Key:Value", h)
		}
		if opts.Init.Header == nil {
			opts.Init.Header = http.Header{}
		}
		opts.Init.Header.Add(key, strings.TrimSpace(value))
	}

	return opts, nil
}

func runGet(cmd *cobra.Command, root *rootOptions, get *getOptions, url string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(root, get)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging("fetchctl")
	logCfg.Output = cmd.ErrOrStderr()
	logger := logging.Setup(logCfg)

	opts, err := buildOptions(get, url, cfg.Fetch.Retry)
	if err != nil {
		return err
	}

	store, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	fetchCfg := fetch.DefaultConfig(store, transport.NewHTTP(cfg.HTTPTransport()))
	fetchCfg.Namespace = cfg.Cache.Namespace
	fetchCfg.BackoffUnit = cfg.Fetch.BackoffUnit.Duration
	fetchCfg.Logger = logger.With().Str("component", "datafetch").Logger()

	o, err := fetch.New(fetchCfg, opts)
	if err != nil {
		return err
	}

	printer := &statePrinter{out: cmd.OutOrStdout(), logger: logger}
	o.Subscribe(printer.print)

	if err := o.Start(ctx); err != nil {
		o.Close()
		return err
	}

	state, waitErr := o.Wait(ctx)
	o.Close()
	<-o.Done()

	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if state.Err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, state.Err)
	}
	return nil
}

type statePrinter struct {
	mu     sync.Mutex
	out    io.Writer
	logger zerolog.Logger
}

func (p *statePrinter) print(s fetch.State[json.RawMessage]) {
	line := stateLine{Loading: s.Loading, Data: json.RawMessage("null")}
	if s.Data != nil {
		line.Data = *s.Data
	}
	if s.Err != nil {
		msg := s.Err.Error()
		line.Error = &msg
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := json.NewEncoder(p.out).Encode(line); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to print state")
	}
}
