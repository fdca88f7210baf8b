package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"marketcorr/internal/domain"
)

// Compile-time interface check.
var _ PriceHistory = (*Yahoo)(nil)

// Yahoo fetches daily closes from the Yahoo Finance v8 chart API over a
// plain HTTP client. It is the minimal fallback transport: date and close
// only, no display names.
type Yahoo struct {
	BaseURL string
	Client  *http.Client
}

// NewYahoo creates a Yahoo provider. baseURL defaults to the public
// query2 endpoint when empty.
func NewYahoo(baseURL string, timeout time.Duration) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query2.finance.yahoo.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Yahoo{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Name returns "yahoo".
func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure of the v8 chart API. Close values
// are nullable (holidays, halted sessions).
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves daily (date, close) points for symbol in [start, end].
func (y *Yahoo) Fetch(ctx context.Context, symbol, start, end string) ([]domain.Point, error) {
	startT, err := time.Parse(domain.DateFormat, start)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("bad start date %q: %w", start, err)}
	}
	endT := time.Now()
	if end != "" {
		t, err := time.Parse(domain.DateFormat, end)
		if err != nil {
			return nil, &PermanentError{Err: fmt.Errorf("bad end date %q: %w", end, err)}
		}
		// Inclusive end: the chart API treats period2 as exclusive.
		endT = t.AddDate(0, 0, 1)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.BaseURL, url.PathEscape(symbol), startT.Unix(), endT.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &PermanentError{Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")

	resp, err := y.Client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("yahoo fetch %s: %w", symbol, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("yahoo read body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoData
	case resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("yahoo: status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return nil, &PermanentError{Err: fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(string(body), 120))}
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("yahoo decode: %w", err)}
	}
	if chart.Chart.Error != nil {
		desc := strings.ToLower(chart.Chart.Error.Description)
		if strings.Contains(desc, "no data") || strings.Contains(desc, "not found") || strings.Contains(desc, "delisted") {
			return nil, ErrNoData
		}
		return nil, &PermanentError{Err: fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoData
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	closes := result.Indicators.Quote[0].Close

	points := make([]domain.Point, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars (holidays etc.)
		}
		points = append(points, domain.Point{
			Date:  time.Unix(ts, 0).UTC().Format(domain.DateFormat),
			Close: *closes[i],
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
