package domain

// IndexDefinition maps an index code to its display name and tracked
// constituent symbols. Static configuration, never mutated at runtime.
type IndexDefinition struct {
	Code         string   `json:"symbol"`
	Name         string   `json:"name"`
	Constituents []string `json:"-"`
}

// Indices is the set of supported benchmark indices. The constituent lists
// are the headline members used by the quick correlation view; full-universe
// analysis ranges over every stored symbol instead.
var Indices = map[string]IndexDefinition{
	"^IXIC": {
		Code: "^IXIC",
		Name: "NASDAQ Composite",
		Constituents: []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "AVGO", "COST", "NFLX",
		},
	},
	"^DJI": {
		Code: "^DJI",
		Name: "Dow Jones Industrial Average",
		Constituents: []string{
			"AAPL", "MSFT", "UNH", "GS", "HD", "MCD", "CAT", "V", "AMGN", "BA",
		},
	},
	"^GSPC": {
		Code: "^GSPC",
		Name: "S&P 500",
		Constituents: []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "BRK-B", "TSLA", "V", "UNH",
		},
	},
}

// DJIComponents is the full Dow Jones 30 membership, used by the bulk
// downloader to seed the store.
var DJIComponents = []string{
	"AAPL", "AMGN", "AMZN", "AXP", "BA", "CAT", "CRM", "CSCO",
	"CVX", "DIS", "GS", "HD", "HON", "IBM", "JNJ", "JPM",
	"KO", "MCD", "MMM", "MRK", "MSFT", "NKE", "NVDA", "PG",
	"SHW", "TRV", "UNH", "V", "VZ", "WMT",
}

// IndexCodes returns the supported index codes in a stable order.
func IndexCodes() []string {
	return []string{"^IXIC", "^DJI", "^GSPC"}
}
