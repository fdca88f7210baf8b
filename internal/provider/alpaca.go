package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marketcorr/internal/domain"
)

// Compile-time interface check.
var _ PriceHistory = (*Alpaca)(nil)

// Alpaca fetches daily bars via the Alpaca market-data API. It is the
// feature-rich primary provider and can also resolve display names.
type Alpaca struct {
	client *marketdata.Client

	mu    sync.Mutex
	names map[string]string // symbol → display name, filled lazily
}

// NewAlpaca creates an Alpaca provider with the given credentials. dataURL
// overrides the default market-data endpoint when non-empty.
func NewAlpaca(apiKey, apiSecret, dataURL string) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &Alpaca{
		client: marketdata.NewClient(opts),
		names:  make(map[string]string),
	}
}

// Name returns "alpaca".
func (a *Alpaca) Name() string { return "alpaca" }

// Fetch retrieves daily (date, close) points for symbol in [start, end].
// Index codes (^IXIC etc.) are not served by Alpaca and fail permanently;
// callers fetch indices through the Yahoo transport instead.
func (a *Alpaca) Fetch(ctx context.Context, symbol, start, end string) ([]domain.Point, error) {
	if strings.HasPrefix(symbol, "^") {
		return nil, ErrNoData
	}

	startT, err := time.Parse(domain.DateFormat, start)
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	endT := time.Now()
	if end != "" {
		t, err := time.Parse(domain.DateFormat, end)
		if err != nil {
			return nil, &PermanentError{Err: err}
		}
		endT = t
	}

	bars, err := a.client.GetBars(alpacaSymbol(symbol), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     startT,
		End:       endT,
	})
	if err != nil {
		return nil, classifyAlpacaErr(err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	points := make([]domain.Point, 0, len(bars))
	for _, b := range bars {
		points = append(points, domain.Point{
			Date:  b.Timestamp.UTC().Format(domain.DateFormat),
			Close: b.Close,
		})
	}
	return points, nil
}

// DisplayName returns a cached human-readable name for symbol, falling back
// to the symbol itself. Best-effort; never fails the caller.
func (a *Alpaca) DisplayName(symbol string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if name, ok := a.names[symbol]; ok {
		return name
	}
	return symbol
}

// SetDisplayName records a display name learned out of band (e.g. from the
// symbol directory download).
func (a *Alpaca) SetDisplayName(symbol, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names[symbol] = name
}

// alpacaSymbol converts store symbols to Alpaca's notation
// (class shares use a dot: BRK-B → BRK.B).
func alpacaSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "-", ".")
}

// classifyAlpacaErr maps SDK errors onto the provider taxonomy. The SDK
// surfaces HTTP failures as formatted messages, so classification is by
// status text — the same signals the upstream emits when throttling.
func classifyAlpacaErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return ErrNoData
	case strings.Contains(msg, "400") || strings.Contains(msg, "403") || strings.Contains(msg, "422"):
		return &PermanentError{Err: err}
	default:
		return &TransientError{Err: err}
	}
}
