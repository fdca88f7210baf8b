package provider

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultSymbolDirectoryURL is the NASDAQ trader symbol directory, a
// pipe-separated listing of every NASDAQ-listed issue.
const DefaultSymbolDirectoryURL = "https://www.nasdaqtrader.com/dynamic/SymDir/nasdaqlisted.txt"

// UniverseSource returns the set of symbols to analyse for a market. When
// the authoritative directory is unreachable it falls back to a static list
// of major tickers rather than failing the run.
type UniverseSource struct {
	URL    string
	Client *http.Client
}

// NewUniverseSource creates a UniverseSource for the NASDAQ directory.
func NewUniverseSource(url string) *UniverseSource {
	if url == "" {
		url = DefaultSymbolDirectoryURL
	}
	return &UniverseSource{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Symbols downloads the symbol directory, filtering out test issues and
// ETFs. On any failure it returns the fallback list and a nil error; the
// bool result reports whether the authoritative source was used.
func (u *UniverseSource) Symbols(ctx context.Context) ([]string, bool) {
	symbols, err := u.download(ctx)
	if err != nil || len(symbols) == 0 {
		return FallbackSymbols(), false
	}
	return symbols, true
}

func (u *UniverseSource) download(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("symbol directory: status %d", resp.StatusCode)
	}

	// Format: Symbol|Security Name|Market Category|Test Issue|Financial Status|Lot Size|ETF|NextShares
	// The last line is a file-creation timestamp, not a symbol.
	var (
		symbols  []string
		scanner  = bufio.NewScanner(resp.Body)
		firstRow = true
		idxTest  = 3
		idxETF   = 6
	)
	for scanner.Scan() {
		line := scanner.Text()
		if firstRow {
			firstRow = false
			continue // header
		}
		if strings.HasPrefix(line, "File Creation Time") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) <= idxETF {
			continue
		}
		if fields[idxTest] == "Y" || fields[idxETF] == "Y" {
			continue
		}
		sym := strings.TrimSpace(fields[0])
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return symbols, nil
}

// FallbackSymbols is the static major-ticker list used when the symbol
// directory cannot be downloaded.
func FallbackSymbols() []string {
	return []string{
		"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "NVDA", "META", "TSLA",
		"AVGO", "COST", "NFLX", "AMD", "PEP", "CSCO", "ADBE", "CMCSA",
		"INTC", "TXN", "QCOM", "AMGN", "INTU", "AMAT", "HON", "ISRG",
		"BKNG", "VRTX", "ADP", "GILD", "SBUX", "REGN", "MU", "ADI",
		"LRCX", "PYPL", "MDLZ", "PANW", "MELI", "KLAC", "SNPS", "CDNS",
		"MAR", "ABNB", "CTAS", "CRWD", "CSX", "NXPI", "ORLY", "MRVL",
		"ASML", "FTNT", "ADSK", "MNST", "DASH", "WDAY", "AEP", "PCAR",
		"CHTR", "CPRT", "ROST", "PAYX", "ODFL", "KDP", "FAST", "KHC",
		"CTSH", "EA", "DXCM", "VRSK", "GEHC", "BKR", "LULU", "IDXX",
		"XEL", "EXC", "MCHP", "CCEP", "CSGP", "TEAM", "ZS", "TTWO",
		"ANSS", "ON", "CDW", "BIIB", "ILMN", "GFS", "WBD", "FANG",
		"DDOG", "MDB", "ZM", "MRNA", "ENPH", "ALGN", "RIVN", "LCID",
		"COIN", "ROKU", "ZI", "PINS", "DOCU", "SNOW", "NET",
		"OKTA", "SHOP", "SQ", "UBER", "LYFT", "SPOT", "RBLX",
	}
}
