// Package marketcorr defines the wire types of the marketcorr API and a
// small HTTP client speaking them. The server encodes its responses from
// these same types, so the two cannot drift apart.
package marketcorr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to a marketcorr server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RangeQuery narrows a request to a date range; empty fields are
// open-ended.
type RangeQuery struct {
	Start string
	End   string
}

func (q RangeQuery) values() url.Values {
	v := url.Values{}
	if q.Start != "" {
		v.Set("start", q.Start)
	}
	if q.End != "" {
		v.Set("end", q.End)
	}
	return v
}

// Indices lists the supported benchmark indices.
func (c *Client) Indices(ctx context.Context) ([]Index, error) {
	var out []Index
	return out, c.get(ctx, "/api/indices", nil, &out)
}

// IndexSeries returns the stored series for an index code.
func (c *Client) IndexSeries(ctx context.Context, code string, q RangeQuery) (Series, error) {
	var out Series
	return out, c.get(ctx, "/api/index/"+url.PathEscape(code), q.values(), &out)
}

// StockSeries returns the stored series for an equity symbol.
func (c *Client) StockSeries(ctx context.Context, symbol string, q RangeQuery) (Series, error) {
	var out Series
	return out, c.get(ctx, "/api/stock/"+url.PathEscape(symbol), q.values(), &out)
}

// Correlations ranks an index's headline constituents against it. A
// zero minCorrelation or limit leaves the server default in place.
func (c *Client) Correlations(ctx context.Context, code string, q RangeQuery, minCorrelation float64, limit int) (CorrelationResponse, error) {
	return c.correlations(ctx, "/api/correlation/"+url.PathEscape(code), q, minCorrelation, limit)
}

// CorrelationsAll ranks every stored symbol against an index.
func (c *Client) CorrelationsAll(ctx context.Context, code string, q RangeQuery, minCorrelation float64, limit int) (CorrelationResponse, error) {
	return c.correlations(ctx, "/api/correlation/"+url.PathEscape(code)+"/all", q, minCorrelation, limit)
}

func (c *Client) correlations(ctx context.Context, path string, q RangeQuery, minCorrelation float64, limit int) (CorrelationResponse, error) {
	v := q.values()
	if minCorrelation > 0 {
		v.Set("min_correlation", strconv.FormatFloat(minCorrelation, 'f', -1, 64))
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out CorrelationResponse
	return out, c.get(ctx, path, v, &out)
}

// Drawdowns scans a stored series for drawdown episodes. A zero
// threshold leaves the server default in place.
func (c *Client) Drawdowns(ctx context.Context, symbol string, q RangeQuery, threshold float64) (DrawdownResponse, error) {
	v := q.values()
	if threshold > 0 {
		v.Set("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}
	var out DrawdownResponse
	return out, c.get(ctx, "/api/drawdowns/"+url.PathEscape(symbol), v, &out)
}

// TriggerUpdate starts an update run and returns its summary. With no
// symbols the server refreshes its whole universe.
func (c *Client) TriggerUpdate(ctx context.Context, symbols []string, full bool) (UpdateResponse, error) {
	body, err := json.Marshal(UpdateRequest{Symbols: symbols, Full: full})
	if err != nil {
		return UpdateResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/update", bytes.NewReader(body))
	if err != nil {
		return UpdateResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out UpdateResponse
	return out, c.do(req, &out)
}

// UpdateHistory returns the most recent update runs.
func (c *Client) UpdateHistory(ctx context.Context, limit int) (HistoryResponse, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	return out, c.get(ctx, "/api/update/history", v, &out)
}

func (c *Client) get(ctx context.Context, path string, v url.Values, out any) error {
	u := c.BaseURL + path
	if len(v) > 0 {
		u += "?" + v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", req.URL.Path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: status %d", req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
