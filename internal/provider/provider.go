// Package provider defines the price-history capability and its
// implementations: the Alpaca market-data client and a minimal direct
// Yahoo chart API transport used as a fallback when Alpaca is throttled
// or unavailable.
package provider

import (
	"context"
	"errors"
	"fmt"

	"marketcorr/internal/domain"
)

// PriceHistory fetches a time-ordered sequence of (date, close) points for
// a symbol. start and end are inclusive calendar dates ("2006-01-02");
// an empty end means "up to now".
type PriceHistory interface {
	Name() string
	Fetch(ctx context.Context, symbol, start, end string) ([]domain.Point, error)
}

// Sentinel errors for fetch outcomes.
var (
	// ErrNoData means the upstream has no history for the symbol
	// (delisted or never listed). Not retried.
	ErrNoData = errors.New("provider: no data for symbol")

	// ErrRateLimited is a throttling signal. Transient, and counted by the
	// orchestrator toward the fallback-transport switch.
	ErrRateLimited = errors.New("provider: rate limited")
)

// TransientError wraps failures worth retrying (timeouts, 5xx responses).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("provider: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps failures that will not succeed on retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return fmt.Sprintf("provider: permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}

// IsRateLimited reports whether err is a throttling signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
