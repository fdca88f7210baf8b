// One-shot tool: walk the price store and report corrupt, invalid, or
// stale records.
//
// Usage:
//
//	marketcorr-check [-v] [SYMBOL...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"marketcorr/internal/config"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
)

func main() {
	verbose := flag.Bool("v", false, "print every symbol, not just problems")
	flag.Parse()

	cfgPath := "config/marketcorr.yaml"
	if p := os.Getenv("MARKETCORR_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	st := store.New(cfg.Storage.DataDir)

	symbols := flag.Args()
	if len(symbols) == 0 {
		symbols, err = st.ListSymbols()
		if err != nil {
			log.Fatalf("listing symbols: %v", err)
		}
	}
	if len(symbols) == 0 {
		fmt.Println("store is empty")
		return
	}

	target := update.LatestMarketDate(st)
	fmt.Printf("checking %d symbols against market date %s\n\n", len(symbols), target)

	var ok, stale, corrupt, missing int
	for _, symbol := range symbols {
		series, err := st.Load(symbol)
		switch {
		case errors.Is(err, store.ErrNotFound):
			missing++
			fmt.Printf("  %-8s MISSING\n", symbol)
			continue
		case errors.Is(err, store.ErrCorrupt):
			corrupt++
			fmt.Printf("  %-8s CORRUPT  %v\n", symbol, err)
			continue
		case err != nil:
			corrupt++
			fmt.Printf("  %-8s ERROR    %v\n", symbol, err)
			continue
		}

		if _, needsUpdate := update.NeedsUpdate(st, symbol, target); needsUpdate {
			stale++
			fmt.Printf("  %-8s STALE    last %s, %d points\n", symbol, series.LastDate(), series.Len())
			continue
		}

		ok++
		if *verbose {
			fmt.Printf("  %-8s ok       %s .. %s, %d points\n", symbol, series.StartDate, series.LastDate(), series.Len())
		}
	}

	fmt.Printf("\n%d ok, %d stale, %d corrupt, %d missing\n", ok, stale, corrupt, missing)
	if corrupt > 0 {
		os.Exit(1)
	}
}
