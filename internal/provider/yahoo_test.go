package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func chartBody(timestamps []int64, closes []string) string {
	ts := ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
		}
		ts += fmt.Sprint(t)
	}
	cl := ""
	for i, c := range closes {
		if i > 0 {
			cl += ","
		}
		cl += c
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cl)
}

func TestYahooFetch(t *testing.T) {
	day := func(d string) int64 {
		tm, _ := time.Parse("2006-01-02", d)
		return tm.Unix()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("interval = %q, want 1d", r.URL.Query().Get("interval"))
		}
		// Second close is null (holiday bar) and must be skipped.
		fmt.Fprint(w, chartBody(
			[]int64{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")},
			[]string{"101.5", "null", "103.25"},
		))
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, 5*time.Second)
	points, err := y.Fetch(context.Background(), "AAPL", "2024-01-01", "2024-01-05")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 (null bar skipped)", len(points))
	}
	if points[0].Date != "2024-01-02" || points[0].Close != 101.5 {
		t.Errorf("points[0] = %+v", points[0])
	}
	if points[1].Date != "2024-01-04" || points[1].Close != 103.25 {
		t.Errorf("points[1] = %+v", points[1])
	}
}

func TestYahooRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, 5*time.Second)
	_, err := y.Fetch(context.Background(), "AAPL", "2024-01-01", "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Fetch under 429 = %v, want ErrRateLimited", err)
	}
	if !IsTransient(err) {
		t.Error("rate limiting should be classified as transient")
	}
	if !IsRateLimited(err) {
		t.Error("IsRateLimited should report true")
	}
}

func TestYahooNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[],"error":null}}`)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, 5*time.Second)
	_, err := y.Fetch(context.Background(), "GONE", "2024-01-01", "")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Fetch of empty result = %v, want ErrNoData", err)
	}
	if IsTransient(err) {
		t.Error("no-data must not be retried")
	}
}

func TestYahooServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, 5*time.Second)
	_, err := y.Fetch(context.Background(), "AAPL", "2024-01-01", "")
	if !IsTransient(err) {
		t.Fatalf("5xx should be transient, got %v", err)
	}
	if IsRateLimited(err) {
		t.Error("5xx is not a throttling signal")
	}
}

func TestUniverseDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Symbol|Security Name|Market Category|Test Issue|Financial Status|Round Lot Size|ETF|NextShares\n"+
			"AAPL|Apple Inc. - Common Stock|Q|N|N|100|N|N\n"+
			"ZTEST|Test Issue|Q|Y|N|100|N|N\n"+
			"QQQ|Invesco QQQ Trust|Q|N|N|100|Y|N\n"+
			"MSFT|Microsoft Corporation - Common Stock|Q|N|N|100|N|N\n"+
			"File Creation Time: 0101202522:01|||||||\n")
	}))
	defer srv.Close()

	u := NewUniverseSource(srv.URL)
	symbols, authoritative := u.Symbols(context.Background())
	if !authoritative {
		t.Fatal("expected authoritative source to be used")
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Errorf("Symbols = %v, want [AAPL MSFT] (test issues and ETFs filtered)", symbols)
	}
}

func TestUniverseFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u := NewUniverseSource(srv.URL)
	symbols, authoritative := u.Symbols(context.Background())
	if authoritative {
		t.Fatal("unreachable source should report non-authoritative")
	}
	if len(symbols) == 0 {
		t.Fatal("fallback list must not be empty")
	}
}
