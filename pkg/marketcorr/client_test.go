package marketcorr_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketcorr/internal/domain"
	"marketcorr/internal/httpapi"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
	. "marketcorr/pkg/marketcorr"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	st := store.New(t.TempDir())

	dates := make([]string, 0, 60)
	tm, _ := time.Parse(domain.DateFormat, "2023-01-02")
	for len(dates) < 60 {
		if wd := tm.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, tm.Format(domain.DateFormat))
		}
		tm = tm.AddDate(0, 0, 1)
	}

	index := &domain.Series{Symbol: "^GSPC", Name: "S&P 500", Dates: dates, StartDate: dates[0]}
	stock := &domain.Series{Symbol: "AAPL", Dates: dates, StartDate: dates[0]}
	for i := range dates {
		index.Close = append(index.Close, 4000+float64(i))
		stock.Close = append(stock.Close, 150+float64(i)/2)
	}
	for _, s := range []*domain.Series{index, stock} {
		if err := st.Save(s); err != nil {
			t.Fatalf("Save(%s): %v", s.Symbol, err)
		}
	}

	api := httpapi.NewServer(st, nil, nil, nil, httpapi.AnalysisOptions{MinOverlap: 30}, nil)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestClientIndices(t *testing.T) {
	c := testClient(t)
	indices, err := c.Indices(context.Background())
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	if len(indices) != len(domain.Indices) {
		t.Errorf("got %d indices", len(indices))
	}
}

func TestClientStockSeries(t *testing.T) {
	c := testClient(t)
	series, err := c.StockSeries(context.Background(), "AAPL", RangeQuery{})
	if err != nil {
		t.Fatalf("StockSeries: %v", err)
	}
	if series.Symbol != "AAPL" || series.DataPoints != 60 {
		t.Errorf("series = %s/%d", series.Symbol, series.DataPoints)
	}
}

func TestClientNotFound(t *testing.T) {
	c := testClient(t)
	_, err := c.StockSeries(context.Background(), "NOPE", RangeQuery{})
	if err == nil {
		t.Fatal("expected an error for a missing symbol")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry the status, got %v", err)
	}
}

type stubUpdater struct{}

func (stubUpdater) Refresh(_ context.Context, symbols []string) (update.Summary, error) {
	return update.Summary{
		Total:   len(symbols),
		Updated: len(symbols),
		Results: map[string]string{"AAPL": "updated"},
	}, nil
}

func (stubUpdater) Download(_ context.Context, symbols []string) (update.Summary, error) {
	return update.Summary{Total: len(symbols), Updated: len(symbols)}, nil
}

func TestClientTriggerUpdate(t *testing.T) {
	st := store.New(t.TempDir())
	api := httpapi.NewServer(st, nil, nil, stubUpdater{}, httpapi.AnalysisOptions{}, nil)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL)

	resp, err := c.TriggerUpdate(context.Background(), []string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("TriggerUpdate: %v", err)
	}
	if resp.Summary.Updated != 1 || resp.Summary.Results["AAPL"] != "updated" {
		t.Errorf("summary = %+v", resp.Summary)
	}
}

func TestClientCorrelationsAll(t *testing.T) {
	c := testClient(t)
	resp, err := c.CorrelationsAll(context.Background(), "^GSPC", RangeQuery{}, 0.5, 10)
	if err != nil {
		t.Fatalf("CorrelationsAll: %v", err)
	}
	if resp.Totals.Returned != 1 || resp.Results[0].Symbol != "AAPL" {
		t.Errorf("response = %+v", resp)
	}
}
