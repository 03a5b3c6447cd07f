//go:build integration

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sternrassler/datafetch/internal/testutil"
	"github.com/Sternrassler/datafetch/pkg/cache"
)

func TestReadyEndpoint_Redis(t *testing.T) {
	redisClient := testutil.StartRedis(t)
	store := cache.NewRedisStore(redisClient, cache.RedisConfig{})
	handler := readyHandler(store)

	t.Run("ready", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "OK" {
			t.Errorf("Expected body 'OK', got %s", w.Body.String())
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		// Close Redis to simulate failure
		redisClient.Close()

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
	})
}

func TestFetchEndpoint_RedisShared(t *testing.T) {
	upstream := testutil.NewMockServer()
	defer upstream.Close()
	upstream.SetResponse("/planets/1", testutil.NewJSONResponse(`{"name":"Tatooine"}`, "600"))

	redisClient := testutil.StartRedis(t)

	// Two proxies sharing one Redis behave as one cache
	for i := 0; i < 2; i++ {
		store := cache.NewRedisStore(redisClient, cache.RedisConfig{})
		server := httptest.NewServer(newMux(testFetchConfig(store), store, 0))

		resp, err := http.Get(server.URL + "/fetch?url=" + upstream.URL() + "/planets/1")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()
		server.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
	}

	if count := upstream.GetPathCount("/planets/1"); count != 1 {
		t.Errorf("Expected 1 upstream request, got %d", count)
	}
}
