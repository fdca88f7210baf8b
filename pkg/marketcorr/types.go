package marketcorr

import "time"

// Index describes one supported benchmark index.
type Index struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Constituents int    `json:"constituents"`
	Stored       bool   `json:"stored"`
	LastDate     string `json:"last_date,omitempty"`
}

// Series is the wire form of a stored price series.
type Series struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name,omitempty"`
	Dates      []string  `json:"dates"`
	Close      []float64 `json:"close"`
	StartDate  string    `json:"start_date,omitempty"`
	EndDate    string    `json:"end_date,omitempty"`
	DataPoints int       `json:"data_points"`
}

// Correlation is one ranked correlation result.
type Correlation struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name,omitempty"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
	DataPoints  int     `json:"data_points"`
}

// CorrelationTotals tallies how the candidate set narrowed to the
// returned results.
type CorrelationTotals struct {
	Analyzed int `json:"analyzed"`  // candidates considered
	WithData int `json:"with_data"` // had enough overlapping data
	Returned int `json:"returned"`  // survived filter and limit
}

// CorrelationResponse is the body of the correlation endpoints.
type CorrelationResponse struct {
	Index     string            `json:"index"`
	Name      string            `json:"name,omitempty"`
	StartDate string            `json:"start_date,omitempty"`
	EndDate   string            `json:"end_date,omitempty"`
	Results   []Correlation     `json:"results"`
	Totals    CorrelationTotals `json:"totals"`
}

// DrawdownEpisode is one peak-to-trough decline meeting the scan
// threshold. RecoveryDate is empty while the price has not yet returned
// to the peak.
type DrawdownEpisode struct {
	PeakDate     string  `json:"peak_date"`
	PeakPrice    float64 `json:"peak_price"`
	TroughDate   string  `json:"trough_date"`
	TroughPrice  float64 `json:"trough_price"`
	Drawdown     float64 `json:"drawdown"`
	RecoveryDate string  `json:"recovery_date,omitempty"`
}

// DrawdownResponse is the body of the drawdown endpoint.
type DrawdownResponse struct {
	Symbol    string            `json:"symbol"`
	Threshold float64           `json:"threshold"`
	Episodes  []DrawdownEpisode `json:"episodes"`
}

// UpdateRequest selects what an update run covers. With no symbols the
// server refreshes the indices plus every stored symbol.
type UpdateRequest struct {
	Symbols []string `json:"symbols,omitempty"`
	Full    bool     `json:"full,omitempty"` // full bulk download instead of incremental
}

// UpdateSummary aggregates one update run.
type UpdateSummary struct {
	Total     int           `json:"total"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	NewPoints int           `json:"new_points"`
	Outdated  int           `json:"outdated"`
	Degraded  bool          `json:"degraded"`
	Elapsed   time.Duration `json:"elapsed"`

	// Results maps each symbol to its outcome: "updated", "skipped", or
	// "failed: <cause>".
	Results map[string]string `json:"results,omitempty"`
}

// UpdateResponse wraps a run summary.
type UpdateResponse struct {
	Summary UpdateSummary `json:"summary"`
}

// Run is one recorded bulk download or incremental update run.
type Run struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"` // "download" or "update"
	Total     int       `json:"total"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	NewPoints int       `json:"new_points"`
	Degraded  bool      `json:"degraded"`
	ElapsedMS int64     `json:"elapsed_ms"`
	StartedAt time.Time `json:"started_at"`
}

// HistoryResponse lists recent update runs.
type HistoryResponse struct {
	Runs []Run `json:"runs"`
}
