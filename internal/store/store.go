// Package store persists one gzip-compressed JSON document per symbol and
// supports incremental merge-append of newly fetched price points.
package store

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"marketcorr/internal/domain"
)

// Sentinel errors. Callers decide retry/skip/redownload policy; the store
// never masks corruption as missing data.
var (
	ErrNotFound = errors.New("store: no record for symbol")
	ErrCorrupt  = errors.New("store: corrupt record")
)

// CorruptError wraps ErrCorrupt with the symbol and the underlying cause.
type CorruptError struct {
	Symbol string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("store: corrupt record for %s: %v", e.Symbol, e.Err)
}

func (e *CorruptError) Unwrap() error { return ErrCorrupt }

// Store is a per-symbol time-series store rooted at a data directory.
// Files are partitioned by symbol, so concurrent writers never contend as
// long as no symbol is written twice concurrently.
type Store struct {
	DataDir string
}

// New creates a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

// record is the on-disk JSON shape. Historical files carry the price array
// under either "close" or "close_prices"; both are accepted on read and the
// ambiguity never leaves this package.
type record struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	Dates       []string  `json:"dates"`
	Close       []float64 `json:"close,omitempty"`
	ClosePrices []float64 `json:"close_prices,omitempty"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	LastUpdated string    `json:"last_updated,omitempty"`
	DataPoints  int       `json:"data_points,omitempty"`
}

// path returns the file path for a symbol's record.
func (s *Store) path(symbol string) string {
	return filepath.Join(s.DataDir, symbol+".json.gz")
}

// Load reads and decompresses the persisted record for symbol. It returns
// ErrNotFound when no record exists and a *CorruptError when the file cannot
// be decompressed or parsed, or violates the series invariants.
func (s *Store) Load(symbol string) (*domain.Series, error) {
	f, err := os.Open(s.path(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening record for %s: %w", symbol, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, &CorruptError{Symbol: symbol, Err: err}
	}
	defer zr.Close()

	var rec record
	if err := json.NewDecoder(zr).Decode(&rec); err != nil {
		return nil, &CorruptError{Symbol: symbol, Err: err}
	}

	closes := rec.Close
	if closes == nil {
		closes = rec.ClosePrices
	}
	if len(rec.Dates) == 0 || len(rec.Dates) != len(closes) {
		return nil, &CorruptError{Symbol: symbol, Err: fmt.Errorf("dates/close length mismatch: %d vs %d", len(rec.Dates), len(closes))}
	}
	for i := 1; i < len(rec.Dates); i++ {
		if rec.Dates[i] <= rec.Dates[i-1] {
			return nil, &CorruptError{Symbol: symbol, Err: fmt.Errorf("dates not strictly ascending at index %d", i)}
		}
	}

	series := &domain.Series{
		Symbol:     rec.Symbol,
		Name:       rec.Name,
		Dates:      rec.Dates,
		Close:      closes,
		StartDate:  rec.StartDate,
		EndDate:    rec.EndDate,
		DataPoints: len(rec.Dates),
	}
	if series.Symbol == "" {
		series.Symbol = symbol
	}
	if series.EndDate == "" {
		series.EndDate = series.LastDate()
	}
	if rec.LastUpdated != "" {
		series.LastUpdated = parseTimestamp(rec.LastUpdated)
	}
	return series, nil
}

// Save serialises and compresses the series atomically, overwriting any
// prior record for the symbol. A failure leaves the previous file intact:
// the record is written to a temp file in the same directory and renamed
// over the target only on success.
func (s *Store) Save(series *domain.Series) error {
	if len(series.Dates) != len(series.Close) {
		return fmt.Errorf("saving %s: dates/close length mismatch: %d vs %d", series.Symbol, len(series.Dates), len(series.Close))
	}
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return err
	}

	rec := record{
		Symbol:      series.Symbol,
		Name:        series.Name,
		Dates:       series.Dates,
		Close:       series.Close,
		StartDate:   series.StartDate,
		EndDate:     series.LastDate(),
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		DataPoints:  len(series.Dates),
	}

	tmp, err := os.CreateTemp(s.DataDir, series.Symbol+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", series.Symbol, err)
	}
	tmpName := tmp.Name()

	zw := gzip.NewWriter(tmp)
	encErr := json.NewEncoder(zw).Encode(&rec)
	if err := zw.Close(); encErr == nil {
		encErr = err
	}
	if err := tmp.Close(); encErr == nil {
		encErr = err
	}
	if encErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing record for %s: %w", series.Symbol, encErr)
	}

	if err := os.Rename(tmpName, s.path(series.Symbol)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing record for %s: %w", series.Symbol, err)
	}
	return nil
}

// MergeAppend merges newly fetched points into the existing record for
// symbol, appending only dates not already present and re-sorting the
// combined pairs by date before persisting. It returns the number of points
// actually added. With no existing record it behaves as a full Save.
// Applying the same points twice is a no-op the second time.
func (s *Store) MergeAppend(symbol string, points []domain.Point) (int, error) {
	existing, err := s.Load(symbol)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	if existing == nil {
		series := seriesFromPoints(symbol, points)
		if series.Len() == 0 {
			return 0, nil
		}
		if err := s.Save(series); err != nil {
			return 0, err
		}
		return series.Len(), nil
	}

	seen := make(map[string]struct{}, len(existing.Dates))
	for _, d := range existing.Dates {
		seen[d] = struct{}{}
	}

	added := 0
	for _, p := range points {
		if _, dup := seen[p.Date]; dup {
			continue
		}
		seen[p.Date] = struct{}{}
		existing.Dates = append(existing.Dates, p.Date)
		existing.Close = append(existing.Close, p.Close)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	// Fetch results can arrive out of order; re-sort the combined pairs.
	sortSeries(existing)
	existing.EndDate = existing.LastDate()
	existing.DataPoints = existing.Len()

	if err := s.Save(existing); err != nil {
		return 0, err
	}
	return added, nil
}

// LastDate returns the most recent stored date for symbol, or "" with
// ErrNotFound when no record exists.
func (s *Store) LastDate(symbol string) (string, error) {
	series, err := s.Load(symbol)
	if err != nil {
		return "", err
	}
	return series.LastDate(), nil
}

// ListSymbols returns all symbols with a persisted record, sorted.
func (s *Store) ListSymbols() ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json.gz") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".json.gz"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Stats summarises the store contents.
type Stats struct {
	TotalSymbols int    `json:"total_symbols"`
	TotalBytes   int64  `json:"total_bytes"`
	DataDir      string `json:"data_dir"`
}

// Stats walks the data directory and reports record count and total size.
func (s *Store) Stats() (Stats, error) {
	st := Stats{DataDir: s.DataDir}
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json.gz") {
			continue
		}
		st.TotalSymbols++
		if info, err := e.Info(); err == nil {
			st.TotalBytes += info.Size()
		}
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seriesFromPoints(symbol string, points []domain.Point) *domain.Series {
	series := &domain.Series{Symbol: symbol}
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if _, dup := seen[p.Date]; dup {
			continue
		}
		seen[p.Date] = struct{}{}
		series.Dates = append(series.Dates, p.Date)
		series.Close = append(series.Close, p.Close)
	}
	sortSeries(series)
	if series.Len() > 0 {
		series.StartDate = series.Dates[0]
		series.EndDate = series.LastDate()
		series.DataPoints = series.Len()
	}
	return series
}

// sortSeries sorts the (date, close) pairs of a series by date ascending.
func sortSeries(s *domain.Series) {
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return s.Dates[idx[a]] < s.Dates[idx[b]] })

	dates := make([]string, len(idx))
	closes := make([]float64, len(idx))
	for i, j := range idx {
		dates[i] = s.Dates[j]
		closes[i] = s.Close[j]
	}
	s.Dates = dates
	s.Close = closes
}

// parseTimestamp accepts RFC3339 as well as the bare ISO format written by
// earlier versions of the store.
func parseTimestamp(v string) time.Time {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
		return t
	}
	return time.Time{}
}
