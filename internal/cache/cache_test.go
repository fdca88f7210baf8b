package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if k := Key("correlation", "^IXIC", "AAPL"); k != "marketcorr:correlation:^IXIC:AAPL" {
		t.Errorf("Key = %q", k)
	}
	if k := Key("tickers"); k != "marketcorr:tickers" {
		t.Errorf("Key = %q", k)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 50*time.Millisecond)
	if v, ok := m.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
}

func TestCachedComputesOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	calls := 0
	compute := func() (map[string]int, error) {
		calls++
		return map[string]int{"a": 1}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Cached(ctx, m, Key("test"), time.Minute, compute)
		if err != nil {
			t.Fatalf("Cached: %v", err)
		}
		if v["a"] != 1 {
			t.Fatalf("value = %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestCachedErrorNotCached(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	calls := 0
	compute := func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}

	if _, err := Cached(ctx, m, "k", time.Minute, compute); err == nil {
		t.Fatal("expected error on first call")
	}
	v, err := Cached(ctx, m, "k", time.Minute, compute)
	if err != nil || v != 42 {
		t.Fatalf("second call = %v, %v", v, err)
	}
}

func TestCachedNilCache(t *testing.T) {
	v, err := Cached(context.Background(), nil, "k", time.Minute, func() (string, error) {
		return "direct", nil
	})
	if err != nil || v != "direct" {
		t.Fatalf("nil cache: %v, %v", v, err)
	}
}

func TestCachedBadEntryRecomputed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Set(ctx, "k", []byte("not gzip"), time.Minute)

	v, err := Cached(ctx, m, "k", time.Minute, func() (string, error) {
		return "fresh", nil
	})
	if err != nil || v != "fresh" {
		t.Fatalf("Cached over bad entry = %v, %v", v, err)
	}
}
