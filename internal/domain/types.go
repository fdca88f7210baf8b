// Package domain defines the core data types shared across the marketcorr
// platform: per-symbol time series, correlation results, and drawdown
// episodes.
package domain

import "time"

// DateFormat is the calendar-date layout used throughout the platform.
const DateFormat = "2006-01-02"

// Series is the canonical in-memory shape of one symbol's daily close
// history. Dates are ISO calendar dates in ascending order with no
// duplicates, and Close is index-aligned with Dates.
type Series struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name,omitempty"`
	Dates       []string  `json:"dates"`
	Close       []float64 `json:"close"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	DataPoints  int       `json:"data_points"`
}

// Len returns the number of points in the series.
func (s *Series) Len() int { return len(s.Dates) }

// LastDate returns the most recent date in the series, or "" when empty.
func (s *Series) LastDate() string {
	if len(s.Dates) == 0 {
		return ""
	}
	return s.Dates[len(s.Dates)-1]
}

// Point is a single (date, close) observation as returned by a price
// history provider.
type Point struct {
	Date  string
	Close float64
}

// CorrelationResult is the correlation of one candidate symbol against an
// index over their shared dates. Computed on demand, never persisted.
type CorrelationResult struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value,omitempty"`
	DataPoints  int     `json:"data_points"`
}

// DrawdownEpisode is one peak-to-trough decline meeting the scan threshold.
// RecoveryDate is empty while the price has not yet returned to the peak.
type DrawdownEpisode struct {
	PeakDate     string  `json:"peak_date"`
	PeakPrice    float64 `json:"peak_price"`
	TroughDate   string  `json:"trough_date"`
	TroughPrice  float64 `json:"trough_price"`
	Drawdown     float64 `json:"drawdown"`
	RecoveryDate string  `json:"recovery_date,omitempty"`
}
