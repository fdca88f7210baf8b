package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"marketcorr/internal/domain"
)

// ErrInsufficientOverlap reports that two series share fewer trading days
// than the configured minimum.
var ErrInsufficientOverlap = errors.New("insufficient overlapping data points")

// Align pairs up the closes of two series on their shared trading dates,
// in ascending date order. Dates carrying a NaN or non-positive close on
// either side are excluded.
func Align(a, b *domain.Series) (x, y []float64, dates []string) {
	idx := make(map[string]float64, b.Len())
	for i, d := range b.Dates {
		idx[d] = b.Close[i]
	}

	for i, d := range a.Dates {
		ca := a.Close[i]
		cb, ok := idx[d]
		if !ok {
			continue
		}
		if math.IsNaN(ca) || math.IsNaN(cb) || ca <= 0 || cb <= 0 {
			continue
		}
		x = append(x, ca)
		y = append(y, cb)
		dates = append(dates, d)
	}
	return x, y, dates
}

// Correlate computes the Pearson correlation of two series over their
// shared dates. It returns ErrInsufficientOverlap when fewer than
// minOverlap dates are shared.
func Correlate(a, b *domain.Series, minOverlap int) (*domain.CorrelationResult, error) {
	x, y, dates := Align(a, b)
	n := len(dates)
	if n < minOverlap {
		return nil, fmt.Errorf("%s vs %s: %d shared dates, need %d: %w",
			a.Symbol, b.Symbol, n, minOverlap, ErrInsufficientOverlap)
	}

	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		// Constant series on either side.
		return nil, fmt.Errorf("%s vs %s: undefined correlation: %w",
			a.Symbol, b.Symbol, ErrInsufficientOverlap)
	}

	return &domain.CorrelationResult{
		Symbol:      b.Symbol,
		Name:        b.Name,
		Correlation: r,
		PValue:      pValue(r, n),
		DataPoints:  n,
	}, nil
}

// pValue is the two-sided p-value of the Pearson r under the null of no
// correlation, via the t distribution with n-2 degrees of freedom.
func pValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	rr := r * r
	if rr >= 1 {
		return 0
	}
	t := math.Abs(r) * math.Sqrt(float64(n-2)/(1-rr))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return 2 * dist.CDF(-t)
}

// Restrict returns a copy of s limited to dates in [start, end]. Empty
// bounds are open-ended.
func Restrict(s *domain.Series, start, end string) *domain.Series {
	out := &domain.Series{
		Symbol:      s.Symbol,
		Name:        s.Name,
		LastUpdated: s.LastUpdated,
	}
	for i, d := range s.Dates {
		if start != "" && d < start {
			continue
		}
		if end != "" && d > end {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Close = append(out.Close, s.Close[i])
	}
	if len(out.Dates) > 0 {
		out.StartDate = out.Dates[0]
		out.EndDate = out.Dates[len(out.Dates)-1]
	}
	out.DataPoints = len(out.Dates)
	return out
}

// Rank orders results by absolute correlation, strongest first, with
// symbol as the tiebreak, then drops results weaker than minCorrelation
// and truncates to limit. Ranking happens before filtering so the cut
// never promotes a weaker result into the returned window.
func Rank(results []*domain.CorrelationResult, minCorrelation float64, limit int) []*domain.CorrelationResult {
	sort.Slice(results, func(i, j int) bool {
		ai, aj := math.Abs(results[i].Correlation), math.Abs(results[j].Correlation)
		if ai != aj {
			return ai > aj
		}
		return results[i].Symbol < results[j].Symbol
	})

	filtered := results[:0:len(results)]
	for _, r := range results {
		if math.Abs(r.Correlation) >= minCorrelation {
			filtered = append(filtered, r)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
