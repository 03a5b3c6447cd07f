// Package openai adapts the fetch orchestrator to the OpenAI completions API.
//
// A Completion posts one prompt and caches the answer for a day, keyed by
// model and prompt, so repeated prompts are served from the cache.
package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/datafetch/pkg/fetch"
	"github.com/Sternrassler/datafetch/pkg/transport"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// Temperature is sent with every completion request.
	Temperature = 0.5

	// CacheExpiration is how long a completion stays fresh.
	CacheExpiration = 24 * 60 * time.Second
)

var (
	// ErrAPIKeyRequired is returned when no API key is given.
	ErrAPIKeyRequired = errors.New("openai api key is required")

	// ErrModelRequired is returned when no model is given.
	ErrModelRequired = errors.New("openai model is required")
)

// Request is the completions request body.
type Request struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
}

// Choice is one generated completion.
type Choice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Response is the completions response body.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices,omitempty"`

	// Text is set by proxies that flatten the first choice
	Text string `json:"text,omitempty"`
}

// FirstText returns the text of the first choice, or the flattened Text.
func (r *Response) FirstText() string {
	if r == nil {
		return ""
	}
	if len(r.Choices) > 0 {
		return r.Choices[0].Text
	}
	return r.Text
}

// Result is the projected state of a completion.
type Result struct {
	Text    string
	Loading bool
	Err     error
}

// Option customises a Completion.
type Option func(*settings)

type settings struct {
	baseURL string
	retry   int
}

// WithBaseURL points the completion at another API root.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRetry sets the retry budget for failed requests.
func WithRetry(retry int) Option {
	return func(s *settings) {
		s.retry = retry
	}
}

// Completion is a cached completion request for one model and prompt.
type Completion struct {
	orchestrator *fetch.Orchestrator[Response]
	options      fetch.Options[Response]
}

// NewCompletion prepares a completion request. Call Start to send it.
func NewCompletion(cfg fetch.Config, apiKey, model, prompt string, opts ...Option) (*Completion, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if model == "" {
		return nil, ErrModelRequired
	}

	s := settings{baseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&s)
	}

	body, err := json.Marshal(Request{
		Model:       model,
		Prompt:      prompt,
		Temperature: Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+apiKey)

	expiration := CacheExpiration
	options := fetch.Options[Response]{
		URL: s.baseURL + "/completions",
		Init: transport.Init{
			Method: http.MethodPost,
			Header: header,
			Body:   body,
		},
		Retry:      s.retry,
		CacheKey:   CacheKey(model, prompt),
		Expiration: &expiration,
	}

	o, err := fetch.New(cfg, options)
	if err != nil {
		return nil, fmt.Errorf("create completion: %w", err)
	}

	return &Completion{orchestrator: o, options: options}, nil
}

// CacheKey returns the cache slot for a model and prompt. Every prompt goes to
// the same URL, so the key is derived from the request content instead.
func CacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return "openai:completions:" + hex.EncodeToString(sum[:])
}

// Options returns the orchestrator options the completion runs with.
func (c *Completion) Options() fetch.Options[Response] {
	return c.options
}

// Start sends the request, or serves it from the cache.
func (c *Completion) Start(ctx context.Context) error {
	return c.orchestrator.Start(ctx)
}

// Result projects the current state.
func (c *Completion) Result() Result {
	return project(c.orchestrator.State())
}

// Wait blocks until the completion settles.
func (c *Completion) Wait(ctx context.Context) (Result, error) {
	state, err := c.orchestrator.Wait(ctx)
	return project(state), err
}

// Subscribe calls fn with every published result.
func (c *Completion) Subscribe(fn func(Result)) (unsubscribe func()) {
	return c.orchestrator.Subscribe(func(s fetch.State[Response]) {
		fn(project(s))
	})
}

// Close cancels the request.
func (c *Completion) Close() {
	c.orchestrator.Close()
}

func project(s fetch.State[Response]) Result {
	return Result{
		Text:    s.Data.FirstText(),
		Loading: s.Loading,
		Err:     s.Err,
	}
}
