package provider

import (
	"context"
	"sync"

	"marketcorr/internal/domain"
)

// Compile-time interface check.
var _ PriceHistory = (*Mock)(nil)

// Mock returns controllable fixed data for development and testing. Errors
// can be scripted per symbol; ErrBySymbol entries are consumed in order so
// a symbol can fail transiently and then succeed.
type Mock struct {
	Series      map[string][]domain.Point
	ErrBySymbol map[string][]error

	mu    sync.Mutex
	Calls []string
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{
		Series:      make(map[string][]domain.Point),
		ErrBySymbol: make(map[string][]error),
	}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Fetch returns the scripted points or error for symbol, restricted to
// [start, end].
func (m *Mock) Fetch(_ context.Context, symbol, start, end string) ([]domain.Point, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, symbol)
	if errs := m.ErrBySymbol[symbol]; len(errs) > 0 {
		err := errs[0]
		m.ErrBySymbol[symbol] = errs[1:]
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		m.mu.Unlock()
	}

	points, ok := m.Series[symbol]
	if !ok {
		return nil, ErrNoData
	}

	var out []domain.Point
	for _, p := range points {
		if p.Date < start {
			continue
		}
		if end != "" && p.Date > end {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// CallCount returns how many fetches were issued for symbol.
func (m *Mock) CallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == symbol {
			n++
		}
	}
	return n
}
