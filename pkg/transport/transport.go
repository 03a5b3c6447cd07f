// Package transport defines the network primitive used by the fetch
// orchestrator and provides its net/http implementation.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
)

// Transport performs a single cancellable request.
// Implementations must stop work and return once ctx is done.
type Transport interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req Request) (*Response, error)

// Fetch calls f(ctx, req).
func (f Func) Fetch(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Request identifies the resource and how to ask for it.
type Request struct {
	URL  string
	Init Init
}

// Init holds request options.
type Init struct {
	// Method defaults to GET
	Method string

	// Header is sent with the request
	Header http.Header

	// Body is sent verbatim when non-nil
	Body []byte
}

// Merge returns a copy of i overlaid with the non-empty fields of over.
// Headers are merged key by key, with over taking precedence.
func (i Init) Merge(over Init) Init {
	merged := Init{
		Method: i.Method,
		Header: i.Header.Clone(),
		Body:   i.Body,
	}

	if over.Method != "" {
		merged.Method = over.Method
	}
	if over.Body != nil {
		merged.Body = over.Body
	}
	if len(over.Header) > 0 {
		if merged.Header == nil {
			merged.Header = make(http.Header, len(over.Header))
		}
		for key, values := range over.Header {
			merged.Header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
		}
	}

	return merged
}

// Response is a fully read network response.
type Response struct {
	StatusCode int
	StatusText string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Decode parses the body as JSON into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}
