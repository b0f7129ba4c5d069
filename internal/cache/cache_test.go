package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestKey_Stable(t *testing.T) {
	a := Key("export", "EGLL")
	b := Key("export", "EGLL")
	if a != b {
		t.Errorf("Expected identical keys for identical parts, got %s and %s", a, b)
	}
	if a == Key("export", "LFAB") {
		t.Error("Expected different keys for different parts")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), FormatPlain)

	key := Key("test", "roundtrip")
	payload := []byte(`{"reviews":[]}`)

	if err := cache.Set(key, payload, 0); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	got, found := cache.Get(key)
	if !found {
		t.Fatal("Expected cached entry to be found")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %q, got %q", payload, got)
	}
}

func TestDiskCache_GzipRoundTrip(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), FormatGzip)

	key := Key("test", "gzip")
	payload := bytes.Repeat([]byte("airport review text "), 200)

	if err := cache.Set(key, payload, 0); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	got, found := cache.Get(key)
	if !found {
		t.Fatal("Expected cached entry to be found")
	}
	if !bytes.Equal(got, payload) {
		t.Error("Expected gzip round trip to preserve payload")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), FormatPlain)

	key := Key("test", "expiry")
	if err := cache.Set(key, []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, found := cache.Get(key); found {
		t.Error("Expected expired entry to be a miss")
	}
}

func TestDiskCache_ZeroTTLNeverExpires(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), FormatPlain)

	key := Key("test", "no-expiry")
	if err := cache.Set(key, []byte("x"), 0); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	if _, found := cache.Get(key); !found {
		t.Error("Expected ttl-0 entry to stay valid")
	}
}

func TestDiskCache_Miss(t *testing.T) {
	cache := NewDiskCache(t.TempDir(), FormatPlain)
	if _, found := cache.Get(Key("test", "missing")); found {
		t.Error("Expected a miss for an unknown key")
	}
}

func TestMemoryCache_RoundTrip(t *testing.T) {
	cache := NewMemoryCache(0, 0)

	if err := cache.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	got, found := cache.Get("k")
	if !found || string(got) != "v" {
		t.Errorf("Expected v, got %q (found=%v)", got, found)
	}

	if err := cache.Delete("k"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, found := cache.Get("k"); found {
		t.Error("Expected deleted entry to be a miss")
	}
}

func TestFetcher_DefaultPolicy(t *testing.T) {
	fetcher := NewFetcher(NewMemoryCache(0, 0))

	fills := 0
	fill := func(ctx context.Context) ([]byte, error) {
		fills++
		return []byte("fresh"), nil
	}

	ctx := context.Background()

	// First fetch misses and fills.
	got, err := fetcher.Fetch(ctx, "k", RefreshDefault, fill)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(got) != "fresh" || fills != 1 {
		t.Errorf("Expected one fill returning fresh, got %q after %d fills", got, fills)
	}

	// Second fetch hits the cache.
	if _, err := fetcher.Fetch(ctx, "k", RefreshDefault, fill); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fills != 1 {
		t.Errorf("Expected cached fetch to skip the fill, got %d fills", fills)
	}

	if fetcher.Hits() != 1 || fetcher.Misses() != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d and %d", fetcher.Hits(), fetcher.Misses())
	}
}

func TestFetcher_ForcePolicy(t *testing.T) {
	fetcher := NewFetcher(NewMemoryCache(0, 0))

	fills := 0
	fill := func(ctx context.Context) ([]byte, error) {
		fills++
		return []byte("fresh"), nil
	}

	ctx := context.Background()
	if _, err := fetcher.Fetch(ctx, "k", RefreshDefault, fill); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := fetcher.Fetch(ctx, "k", RefreshForce, fill); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if fills != 2 {
		t.Errorf("Expected force to refill despite a cached entry, got %d fills", fills)
	}
}

func TestFetcher_NeverPolicy(t *testing.T) {
	fetcher := NewFetcher(NewMemoryCache(0, 0))

	fill := func(ctx context.Context) ([]byte, error) {
		t.Fatal("fill must never run under RefreshNever")
		return nil, nil
	}

	_, err := fetcher.Fetch(context.Background(), "k", RefreshNever, fill)
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("Expected ErrNotCached, got %v", err)
	}
}

func TestFetcher_FillError(t *testing.T) {
	fetcher := NewFetcher(NewMemoryCache(0, 0))

	wantErr := errors.New("upstream down")
	_, err := fetcher.Fetch(context.Background(), "k", RefreshDefault, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected wrapped fill error, got %v", err)
	}

	// Nothing cached after a failed fill.
	if _, err := fetcher.Fetch(context.Background(), "k", RefreshNever, nil); !errors.Is(err, ErrNotCached) {
		t.Errorf("Expected failed fill to cache nothing, got %v", err)
	}
}

func TestLayeredCache(t *testing.T) {
	dir := t.TempDir()
	layered := NewLayeredCache(0, dir, FormatPlain)

	if err := layered.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	// Both layers hold the entry.
	if got, found := layered.Get("k"); !found || string(got) != "v" {
		t.Errorf("Expected v, got %q (found=%v)", got, found)
	}
	disk := NewDiskCache(dir, FormatPlain)
	if _, found := disk.Get("k"); !found {
		t.Error("Expected entry in the disk layer")
	}

	// A fresh layered cache over the same directory promotes from disk.
	cold := NewLayeredCache(0, dir, FormatPlain)
	got, found := cold.Get("k")
	if !found || string(got) != "v" {
		t.Errorf("Expected disk fallback to return v, got %q (found=%v)", got, found)
	}
}
