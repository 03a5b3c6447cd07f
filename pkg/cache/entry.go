package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entry represents a cached response.
type Entry struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// StatusText is the reason phrase of the cached response
	StatusText string `json:"status_text"`

	// Header holds the response headers, including Cache-Control
	Header http.Header `json:"header"`

	// Body is the raw response body
	Body []byte `json:"body"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`

	// Expiration records the expiration hint the entry was stored with
	// (explicit seconds or the Cache-Control value). Informational only.
	Expiration string `json:"expiration,omitempty"`
}

// CacheControl returns the Cache-Control directive of the cached response.
func (e *Entry) CacheControl() string {
	if e == nil || e.Header == nil {
		return ""
	}
	return e.Header.Get("Cache-Control")
}

// Decode parses the cached body as JSON into v.
func (e *Entry) Decode(v any) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	return json.Unmarshal(e.Body, v)
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Header = e.Header.Clone()
	if e.Body != nil {
		c.Body = append([]byte(nil), e.Body...)
	}
	return &c
}
