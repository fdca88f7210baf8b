// Package export flattens the per-symbol gzip store into a single
// parquet file for analysis in external tooling.
package export

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"marketcorr/internal/store"
)

// Row is one daily close in the parquet output.
type Row struct {
	Symbol string  `parquet:"symbol"`
	Date   string  `parquet:"date"`
	Close  float64 `parquet:"close"`
}

// Export writes the stored series for the given symbols to a parquet
// file at path, ordered by symbol then date. With no symbols given it
// exports the whole store. Corrupt records are skipped and reported in
// the returned count of skipped symbols.
func Export(st *store.Store, symbols []string, path string) (rows, skipped int, err error) {
	if len(symbols) == 0 {
		symbols, err = st.ListSymbols()
		if err != nil {
			return 0, 0, fmt.Errorf("listing symbols: %w", err)
		}
	}

	var out []Row
	for _, symbol := range symbols {
		series, err := st.Load(symbol)
		if err != nil {
			skipped++
			continue
		}
		for i, d := range series.Dates {
			out = append(out, Row{Symbol: series.Symbol, Date: d, Close: series.Close[i]})
		}
	}
	if len(out) == 0 {
		return 0, skipped, fmt.Errorf("nothing to export")
	}

	if err := parquet.WriteFile(path, out); err != nil {
		return 0, skipped, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(out), skipped, nil
}
