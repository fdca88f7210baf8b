// Refreshes the price store from the command line: indices first (they
// establish the latest market date), then the index constituents, then
// optionally the full NASDAQ universe.
//
// Usage:
//
//	marketcorr-update                 incremental refresh of indices + stored symbols
//	marketcorr-update -full           initial bulk download over the NASDAQ universe
//	marketcorr-update -symbols A,B,C  refresh only the listed symbols
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketcorr/internal/config"
	"marketcorr/internal/domain"
	"marketcorr/internal/provider"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
	"marketcorr/internal/util"
)

func main() {
	full := flag.Bool("full", false, "bulk download the NASDAQ universe instead of an incremental refresh")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to refresh (default: indices + stored symbols)")
	flag.Parse()

	godotenv.Load()

	cfgPath := "config/marketcorr.yaml"
	if p := os.Getenv("MARKETCORR_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	st := store.New(cfg.Storage.DataDir)

	var runs *store.RunStore
	if cfg.Storage.SQLitePath != "" {
		runs, err = store.NewRunStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening run store: %v", err)
		}
		defer runs.Close()
	}

	yahoo := provider.NewYahoo(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout())
	var primary provider.PriceHistory = yahoo
	if cfg.Alpaca.APIKey != "" {
		primary = provider.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
	}

	opts := update.Options{
		StartDate:         cfg.Update.StartDate,
		BatchSize:         cfg.Update.BatchSize,
		MaxWorkers:        cfg.Update.MaxWorkers,
		BatchPause:        cfg.Update.BatchPause(),
		DegradedPause:     cfg.Update.DegradedPause(),
		RetryAttempts:     cfg.Update.RetryAttempts,
		RequestsPerMinute: cfg.Update.RequestsPerMinute,
	}
	orch := update.New(st, primary, yahoo, runs, opts, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Step 1: bring the indices current against today. Only after this
	// does their last stored date define the target for everything else.
	sum, err := orch.Update(ctx, domain.IndexCodes(), "")
	if err != nil {
		log.Fatalf("updating indices: %v", err)
	}
	report("indices", sum)

	target := update.LatestMarketDate(st)
	logger.Info("target market date", "date", target)

	// Step 2: the requested equities.
	symbols := equityUniverse(ctx, st, *symbolsFlag, *full, logger)

	if *full {
		sum, err = orch.Download(ctx, symbols)
	} else {
		sum, err = orch.Update(ctx, symbols, target)
	}
	if err != nil {
		log.Fatalf("updating equities: %v", err)
	}
	report("equities", sum)
}

func equityUniverse(ctx context.Context, st *store.Store, symbolsFlag string, full bool, logger *slog.Logger) []string {
	if symbolsFlag != "" {
		var out []string
		for _, s := range strings.Split(symbolsFlag, ",") {
			if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(syms ...string) {
		for _, s := range syms {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}

	// Constituents come before the broad universe so the headline view
	// fills in first.
	for _, code := range domain.IndexCodes() {
		add(domain.Indices[code].Constituents...)
	}
	add(domain.DJIComponents...)

	if full {
		universe, authoritative := provider.NewUniverseSource("").Symbols(ctx)
		if !authoritative {
			logger.Warn("symbol directory unreachable, using fallback list")
		}
		add(universe...)
	} else if stored, err := st.ListSymbols(); err == nil {
		for _, s := range stored {
			if !strings.HasPrefix(s, "^") {
				add(s)
			}
		}
	}
	return out
}

func report(stage string, sum update.Summary) {
	fmt.Printf("%s: %d updated, %d skipped, %d failed, %d new points in %s",
		stage, sum.Updated, sum.Skipped, sum.Failed, sum.NewPoints, sum.Elapsed.Round(time.Millisecond))
	if sum.Degraded {
		fmt.Print(" (degraded to fallback transport)")
	}
	fmt.Println()
}
