package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds the net/http transport configuration.
type Config struct {
	// UserAgent is set on every request when non-empty
	UserAgent string

	// Timeout bounds a single request. Zero means cancellation is the only bound.
	Timeout time.Duration
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: "datafetch/0.1.0",
	}
}

// HTTP is a Transport backed by net/http.
type HTTP struct {
	httpClient *http.Client
	config     Config
}

// NewHTTP creates a new net/http transport.
func NewHTTP(cfg Config) *HTTP {
	return &HTTP{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *HTTP) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Fetch performs the request and reads the whole body.
// Non-2xx statuses are returned as responses, not errors.
func (t *HTTP) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Init.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Init.Body != nil {
		body = bytes.NewReader(req.Init.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range req.Init.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if t.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

// statusText strips the numeric code from resp.Status ("404 Not Found" -> "Not Found").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}
