package main

import (
	"testing"
	"time"
)

func TestFormCacheRoundTrip(t *testing.T) {
	cache, err := NewFormCache(10, time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	form := Form{Hash: "abc123", Name: "Cached Form"}
	cache.Set(form)

	got, ok := cache.Get("abc123")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Cached Form" {
		t.Errorf("got %q, want %q", got.Name, "Cached Form")
	}
	if _, ok := cache.Get("missing"); ok {
		t.Error("unexpected hit for unknown hash")
	}
}

func TestFormCacheTTL(t *testing.T) {
	cache, err := NewFormCache(10, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	cache.Set(Form{Hash: "abc123", Name: "Short Lived"})
	time.Sleep(5 * time.Millisecond)

	if _, ok := cache.Get("abc123"); ok {
		t.Error("entry should have expired")
	}
}

func TestFormCacheInvalidate(t *testing.T) {
	cache, err := NewFormCache(10, time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	cache.Set(Form{Hash: "abc123"})
	cache.Invalidate("abc123")
	if _, ok := cache.Get("abc123"); ok {
		t.Error("invalidated entry should be gone")
	}
}
