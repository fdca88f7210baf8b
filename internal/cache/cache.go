// Package cache provides a cache-aside layer for query results. Values
// are gzip-compressed JSON; the backend is Redis when configured, with an
// in-process TTL map as the fallback so the service runs without one.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Result TTLs, by how quickly the underlying data goes stale.
const (
	TTLSeries      = 1 * time.Hour
	TTLCorrelation = 2 * time.Hour
	TTLTickers     = 7 * 24 * time.Hour
)

// Cache is a byte-level key-value store with expiry. Implementations must
// be safe for concurrent use. Get reports a miss with ok=false; backend
// failures are treated as misses, never surfaced to the caller.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Key derives a cache key from an operation name and its arguments.
func Key(op string, args ...string) string {
	if len(args) == 0 {
		return "marketcorr:" + op
	}
	return "marketcorr:" + op + ":" + strings.Join(args, ":")
}

// Cached looks key up in c and on a miss invokes compute, storing the
// result for ttl. The cached form is gzip-compressed JSON; entries that
// fail to decode are recomputed and overwritten.
func Cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	var zero T
	if c != nil {
		if raw, ok := c.Get(ctx, key); ok {
			var v T
			if err := decode(raw, &v); err == nil {
				return v, nil
			}
			slog.Debug("discarding undecodable cache entry", "key", key)
		}
	}

	v, err := compute()
	if err != nil {
		return zero, err
	}

	if c != nil {
		if raw, err := encode(v); err == nil {
			c.Set(ctx, key, raw, ttl)
		}
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte, v any) error {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("cache entry: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("cache entry: %w", err)
	}
	return json.Unmarshal(data, v)
}
