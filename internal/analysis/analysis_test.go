package analysis

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"marketcorr/internal/domain"
)

// tradingDays generates n consecutive weekday dates starting at start.
func tradingDays(start string, n int) []string {
	t, _ := time.Parse(domain.DateFormat, start)
	dates := make([]string, 0, n)
	for len(dates) < n {
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, t.Format(domain.DateFormat))
		}
		t = t.AddDate(0, 0, 1)
	}
	return dates
}

func series(symbol string, dates []string, closes []float64) *domain.Series {
	return &domain.Series{
		Symbol:     symbol,
		Dates:      dates,
		Close:      closes,
		DataPoints: len(dates),
	}
}

func TestCorrelateSelf(t *testing.T) {
	dates := tradingDays("2020-01-01", 100)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 100 + 3*math.Sin(float64(i)/7) + float64(i)/10
	}
	s := series("^IXIC", dates, closes)

	res, err := Correlate(s, s, 50)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if math.Abs(res.Correlation-1.0) > 1e-9 {
		t.Errorf("self-correlation = %v, want 1.0", res.Correlation)
	}
	if res.DataPoints != 100 {
		t.Errorf("DataPoints = %d, want 100", res.DataPoints)
	}
}

func TestCorrelateSymmetry(t *testing.T) {
	dates := tradingDays("2020-01-01", 80)
	a := make([]float64, len(dates))
	b := make([]float64, len(dates))
	for i := range dates {
		a[i] = 50 + float64(i) + 2*math.Sin(float64(i)/3)
		b[i] = 200 - float64(i)/2 + math.Cos(float64(i)/5)
	}
	sa := series("AAPL", dates, a)
	sb := series("MSFT", dates, b)

	ab, err := Correlate(sa, sb, 50)
	if err != nil {
		t.Fatalf("Correlate(a,b): %v", err)
	}
	ba, err := Correlate(sb, sa, 50)
	if err != nil {
		t.Fatalf("Correlate(b,a): %v", err)
	}
	if math.Abs(ab.Correlation-ba.Correlation) > 1e-12 {
		t.Errorf("asymmetric correlation: %v vs %v", ab.Correlation, ba.Correlation)
	}
}

func TestCorrelateProportional(t *testing.T) {
	// Candidate shares 60 of the index dates with price = 2 × index.
	idxDates := tradingDays("2020-01-01", 90)
	idxCloses := make([]float64, len(idxDates))
	for i := range idxCloses {
		idxCloses[i] = 100 + float64(i) + 5*math.Sin(float64(i)/4)
	}
	index := series("^IXIC", idxDates, idxCloses)

	candDates := make([]string, 60)
	candCloses := make([]float64, 60)
	for i := 0; i < 60; i++ {
		candDates[i] = idxDates[i]
		candCloses[i] = 2 * idxCloses[i]
	}
	cand := series("AAPL", candDates, candCloses)

	res, err := Correlate(index, cand, 50)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if math.Abs(res.Correlation-1.0) > 1e-9 {
		t.Errorf("correlation = %v, want ≈ 1.0", res.Correlation)
	}
	if res.DataPoints != 60 {
		t.Errorf("DataPoints = %d, want 60", res.DataPoints)
	}
	if res.PValue > 1e-6 {
		t.Errorf("PValue = %v, want ≈ 0 for a perfect fit", res.PValue)
	}
}

func TestCorrelateInsufficientOverlap(t *testing.T) {
	idxDates := tradingDays("2020-01-01", 60)
	idxCloses := make([]float64, len(idxDates))
	for i := range idxCloses {
		idxCloses[i] = 100 + float64(i)
	}
	index := series("^IXIC", idxDates, idxCloses)

	// Only 10 shared dates, below a 30-point threshold.
	cand := series("NEWCO", idxDates[:10], idxCloses[:10])

	_, err := Correlate(index, cand, 30)
	if !errors.Is(err, ErrInsufficientOverlap) {
		t.Fatalf("err = %v, want ErrInsufficientOverlap", err)
	}
}

func TestAlignExcludesBadValues(t *testing.T) {
	dates := []string{"2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07"}
	a := series("A", dates, []float64{10, math.NaN(), 12, 13})
	b := series("B", dates, []float64{20, 21, 0, 23})

	x, y, shared := Align(a, b)
	if len(shared) != 2 {
		t.Fatalf("aligned %d dates, want 2 (NaN and zero excluded)", len(shared))
	}
	if shared[0] != "2020-01-02" || shared[1] != "2020-01-07" {
		t.Errorf("shared = %v", shared)
	}
	if x[1] != 13 || y[1] != 23 {
		t.Errorf("aligned values x=%v y=%v", x, y)
	}
}

func TestRankOrderOfOperations(t *testing.T) {
	results := []*domain.CorrelationResult{
		{Symbol: "A", Correlation: 0.95},
		{Symbol: "B", Correlation: -0.90},
		{Symbol: "C", Correlation: 0.80},
		{Symbol: "D", Correlation: 0.40},
		{Symbol: "E", Correlation: -0.99},
	}

	ranked := Rank(results, 0.5, 3)
	if len(ranked) != 3 {
		t.Fatalf("got %d results, want 3", len(ranked))
	}
	want := []string{"E", "A", "B"}
	for i, w := range want {
		if ranked[i].Symbol != w {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].Symbol, w)
		}
	}
}

func TestRankTiebreak(t *testing.T) {
	results := []*domain.CorrelationResult{
		{Symbol: "ZZZ", Correlation: 0.7},
		{Symbol: "AAA", Correlation: -0.7},
	}
	ranked := Rank(results, 0, 0)
	if ranked[0].Symbol != "AAA" || ranked[1].Symbol != "ZZZ" {
		t.Errorf("tiebreak order = [%s %s], want [AAA ZZZ]", ranked[0].Symbol, ranked[1].Symbol)
	}
}

func TestRankEquivalenceNoTies(t *testing.T) {
	// With distinct correlations, rank-filter-truncate and
	// filter-rank-truncate agree on the top N.
	var results []*domain.CorrelationResult
	for i := 0; i < 20; i++ {
		results = append(results, &domain.CorrelationResult{
			Symbol:      fmt.Sprintf("S%02d", i),
			Correlation: float64(i%2*2-1) * (0.3 + float64(i)*0.034),
		})
	}

	a := Rank(cloneResults(results), 0.5, 5)

	var pre []*domain.CorrelationResult
	for _, r := range cloneResults(results) {
		if math.Abs(r.Correlation) >= 0.5 {
			pre = append(pre, r)
		}
	}
	b := Rank(pre, 0, 5)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Symbol != b[i].Symbol {
			t.Errorf("position %d: %s vs %s", i, a[i].Symbol, b[i].Symbol)
		}
	}
}

func cloneResults(in []*domain.CorrelationResult) []*domain.CorrelationResult {
	out := make([]*domain.CorrelationResult, len(in))
	copy(out, in)
	return out
}

func TestRestrict(t *testing.T) {
	dates := tradingDays("2020-01-01", 30)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	s := series("AAPL", dates, closes)

	r := Restrict(s, dates[5], dates[14])
	if r.DataPoints != 10 {
		t.Fatalf("DataPoints = %d, want 10", r.DataPoints)
	}
	if r.StartDate != dates[5] || r.EndDate != dates[14] {
		t.Errorf("range = [%s, %s], want [%s, %s]", r.StartDate, r.EndDate, dates[5], dates[14])
	}

	open := Restrict(s, "", dates[2])
	if open.DataPoints != 3 {
		t.Errorf("open start: DataPoints = %d, want 3", open.DataPoints)
	}
}

func TestDrawdowns(t *testing.T) {
	dates := []string{"2020-01-01", "2020-01-02", "2020-01-03", "2020-01-06", "2020-01-07", "2020-01-08"}
	s := series("^IXIC", dates, []float64{100, 90, 80, 95, 110, 70})

	eps := Drawdowns(s, 0.15)
	if len(eps) != 2 {
		t.Fatalf("got %d episodes, want 2", len(eps))
	}

	first := eps[0]
	if first.PeakDate != "2020-01-01" || first.PeakPrice != 100 {
		t.Errorf("first peak = %s/%v", first.PeakDate, first.PeakPrice)
	}
	if first.TroughDate != "2020-01-03" || first.TroughPrice != 80 {
		t.Errorf("first trough = %s/%v", first.TroughDate, first.TroughPrice)
	}
	if math.Abs(first.Drawdown-0.20) > 1e-12 {
		t.Errorf("first drawdown = %v, want 0.20", first.Drawdown)
	}
	if first.RecoveryDate != "2020-01-07" {
		t.Errorf("first recovery = %s, want 2020-01-07", first.RecoveryDate)
	}

	// The new peak at 110 is tracked going forward; the trailing 36%
	// decline is an open episode.
	second := eps[1]
	if second.PeakPrice != 110 || second.TroughPrice != 70 {
		t.Errorf("second episode = %+v", second)
	}
	if second.RecoveryDate != "" {
		t.Errorf("second episode should be open, got recovery %s", second.RecoveryDate)
	}
}

func TestDrawdownsNone(t *testing.T) {
	dates := tradingDays("2020-01-01", 10)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	s := series("AAPL", dates, closes)
	if eps := Drawdowns(s, 0.15); len(eps) != 0 {
		t.Errorf("monotone series produced %d episodes", len(eps))
	}
}

func TestDrawdownsDeepeningTrough(t *testing.T) {
	dates := tradingDays("2020-01-01", 7)
	// Crosses threshold at 84, deepens to 70, then recovers.
	s := series("AAPL", dates, []float64{100, 84, 90, 70, 75, 101, 102})

	eps := Drawdowns(s, 0.15)
	if len(eps) != 1 {
		t.Fatalf("got %d episodes, want 1", len(eps))
	}
	if eps[0].TroughPrice != 70 {
		t.Errorf("trough = %v, want deepened 70", eps[0].TroughPrice)
	}
	if eps[0].RecoveryDate != dates[5] {
		t.Errorf("recovery = %s, want %s", eps[0].RecoveryDate, dates[5])
	}
}
