// Exports the price store to a single parquet file for use in external
// analysis tooling.
//
// Usage:
//
//	marketcorr-export [-o prices.parquet] [SYMBOL...]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"marketcorr/internal/config"
	"marketcorr/internal/export"
	"marketcorr/internal/store"
)

func main() {
	out := flag.String("o", "prices.parquet", "output parquet file")
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

	rows, skipped, err := export.Export(st, flag.Args(), *out)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
	fmt.Printf("wrote %d rows to %s", rows, *out)
	if skipped > 0 {
		fmt.Printf(" (%d symbols skipped)", skipped)
	}
	fmt.Println()
}
