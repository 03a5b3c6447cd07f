package transport

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/datafetch/internal/testutil"
)

func TestHTTP_Fetch(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/test", testutil.NewJSONResponse(`{"data": "test data"}`, "3600"))

	tr := NewHTTP(DefaultConfig())
	resp, err := tr.Fetch(context.Background(), Request{URL: mock.URL() + "/test"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if !resp.OK() {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.StatusText != "OK" {
		t.Errorf("StatusText = %q, want OK", resp.StatusText)
	}
	if resp.Header.Get("Cache-Control") != "max-age=3600" {
		t.Errorf("Cache-Control = %q", resp.Header.Get("Cache-Control"))
	}
	if string(resp.Body) != `{"data": "test data"}` {
		t.Errorf("Body = %s", resp.Body)
	}

	headers := mock.LastRequestHeader()
	if headers.Get("User-Agent") != DefaultConfig().UserAgent {
		t.Errorf("User-Agent = %q", headers.Get("User-Agent"))
	}
	if headers.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", headers.Get("Accept"))
	}
}

func TestHTTP_FetchPostWithInit(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	var method string
	mock.SetHandler("/completions", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	tr := NewHTTP(DefaultConfig())
	_, err := tr.Fetch(context.Background(), Request{
		URL: mock.URL() + "/completions",
		Init: Init{
			Method: http.MethodPost,
			Header: http.Header{"Authorization": []string{"Bearer key"}},
			Body:   []byte(`{"prompt":"hi"}`),
		},
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if method != http.MethodPost {
		t.Errorf("method = %q, want POST", method)
	}
	if got := mock.LastRequestHeader().Get("Authorization"); got != "Bearer key" {
		t.Errorf("Authorization = %q", got)
	}
	if string(mock.LastRequestBody()) != `{"prompt":"hi"}` {
		t.Errorf("body = %s", mock.LastRequestBody())
	}
}

func TestHTTP_NonOKIsNotAnError(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/missing", testutil.NewNotFoundResponse())

	resp, err := NewHTTP(DefaultConfig()).Fetch(context.Background(), Request{URL: mock.URL() + "/missing"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.OK() {
		t.Error("404 must not be OK")
	}
	if resp.StatusCode != http.StatusNotFound || resp.StatusText != "Not Found" {
		t.Errorf("status = %d %q", resp.StatusCode, resp.StatusText)
	}
}

func TestHTTP_Cancellation(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/slow", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{}`,
		Delay:      5 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := NewHTTP(DefaultConfig()).Fetch(ctx, Request{URL: mock.URL() + "/slow"})
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestHTTP_InvalidURL(t *testing.T) {
	_, err := NewHTTP(DefaultConfig()).Fetch(context.Background(), Request{URL: "://bad"})
	if err == nil {
		t.Error("Expected error for invalid URL")
	}
}
