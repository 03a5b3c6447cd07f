package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
)

func TestMemoryStore_PutAndMatch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	handle, err := store.Open(ctx, DefaultNamespace)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	entry := &Entry{
		StatusCode: 200,
		StatusText: "OK",
		Header:     http.Header{"Cache-Control": []string{"max-age=3600"}},
		Body:       []byte(`{"data": "test data"}`),
	}

	if err := handle.Put(ctx, "/test", entry, PutOptions{Expiration: "max-age=3600"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := handle.Match(ctx, "/test")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if string(got.Body) != string(entry.Body) {
		t.Errorf("Body = %s, want %s", got.Body, entry.Body)
	}
	if got.Expiration != "max-age=3600" {
		t.Errorf("Expiration = %q, want %q", got.Expiration, "max-age=3600")
	}
	if entry.Expiration != "" {
		t.Error("Put must not mutate the caller's entry")
	}
	if store.Len(DefaultNamespace) != 1 {
		t.Errorf("Len = %d, want 1", store.Len(DefaultNamespace))
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore()
	handle, _ := store.Open(context.Background(), DefaultNamespace)

	_, err := handle.Match(context.Background(), "/nonexistent")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryStore_NamespacesAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, _ := store.Open(ctx, "a")
	b, _ := store.Open(ctx, "b")

	if err := a.Put(ctx, "k", &Entry{Body: []byte("1")}, PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := b.Match(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("namespace b should not see a's entry, got %v", err)
	}
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	handle, _ := store.Open(ctx, DefaultNamespace)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = handle.Put(ctx, "shared", &Entry{StatusCode: 200 + i}, PutOptions{})
		}(i)
	}
	wg.Wait()

	if _, err := handle.Match(ctx, "shared"); err != nil {
		t.Fatalf("Match after concurrent puts failed: %v", err)
	}

	if err := handle.Put(ctx, "shared", &Entry{StatusCode: 201}, PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _ := handle.Match(ctx, "shared")
	if got.StatusCode != 201 {
		t.Errorf("StatusCode = %d, want 201", got.StatusCode)
	}
}

func TestMemoryStore_PutNilEntry(t *testing.T) {
	store := NewMemoryStore()
	handle, _ := store.Open(context.Background(), DefaultNamespace)

	if err := handle.Put(context.Background(), "k", nil, PutOptions{}); err == nil {
		t.Error("Put with nil entry should return error")
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	handle, err := NullStore{}.Open(ctx, DefaultNamespace)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := handle.Put(ctx, "k", &Entry{}, PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := handle.Match(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("NullStore Match = %v, want ErrCacheMiss", err)
	}
}
