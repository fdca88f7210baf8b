package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"marketcorr/internal/cache"
	"marketcorr/internal/config"
	"marketcorr/internal/domain"
	"marketcorr/internal/httpapi"
	"marketcorr/internal/provider"
	"marketcorr/internal/store"
	"marketcorr/internal/update"
	"marketcorr/internal/util"
)

func main() {
	updateOnStart := flag.Bool("update", false, "run an incremental update before serving")
	flag.Parse()

	// Best-effort: credentials usually live in .env during development.
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var c cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logger.Warn("redis unreachable, using in-process cache", "addr", cfg.Redis.Addr, "error", err)
			c = cache.NewMemory()
		} else {
			defer redisCache.Close()
			c = redisCache
			logger.Info("result cache on redis", "addr", cfg.Redis.Addr)
		}
	} else {
		c = cache.NewMemory()
	}

	yahoo := provider.NewYahoo(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout())
	var primary provider.PriceHistory = yahoo
	if cfg.Alpaca.APIKey != "" {
		primary = provider.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL)
		logger.Info("primary provider", "name", primary.Name())
	} else {
		logger.Warn("no alpaca credentials, fetching directly via yahoo")
	}

	orch := update.New(st, primary, yahoo, runs, update.Options{
		StartDate:         cfg.Update.StartDate,
		BatchSize:         cfg.Update.BatchSize,
		MaxWorkers:        cfg.Update.MaxWorkers,
		BatchPause:        cfg.Update.BatchPause(),
		DegradedPause:     cfg.Update.DegradedPause(),
		RetryAttempts:     cfg.Update.RetryAttempts,
		RequestsPerMinute: cfg.Update.RequestsPerMinute,
	}, logger)

	if *updateOnStart {
		if err := refresh(ctx, st, orch, logger); err != nil {
			logger.Error("startup update failed", "error", err)
		}
	}

	if cfg.Schedule.UpdateCron != "" {
		sched := cron.New()
		_, err := sched.AddFunc(cfg.Schedule.UpdateCron, func() {
			if err := refresh(ctx, st, orch, logger); err != nil {
				logger.Error("scheduled update failed", "error", err)
			}
		})
		if err != nil {
			log.Fatalf("bad update_cron %q: %v", cfg.Schedule.UpdateCron, err)
		}
		sched.Start()
		defer sched.Stop()
		logger.Info("scheduled refresh enabled", "cron", cfg.Schedule.UpdateCron)
	}

	api := httpapi.NewServer(st, runs, c, orch, httpapi.AnalysisOptions{
		MinOverlap:        cfg.Analysis.MinOverlap,
		MinCorrelation:    cfg.Analysis.MinCorrelation,
		ResultLimit:       cfg.Analysis.ResultLimit,
		DrawdownThreshold: cfg.Analysis.DrawdownThreshold,
	}, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("marketcorr-server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// refresh runs one incremental update over the indices and every stored
// symbol. The orchestrator brings the indices current first, then
// derives the market date the equities are updated against.
func refresh(ctx context.Context, st *store.Store, orch *update.Orchestrator, logger *slog.Logger) error {
	stored, err := st.ListSymbols()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	symbols := domain.IndexCodes()
	for _, code := range symbols {
		seen[code] = struct{}{}
	}
	for _, sym := range stored {
		if _, dup := seen[sym]; !dup {
			symbols = append(symbols, sym)
		}
	}

	sum, err := orch.Refresh(ctx, symbols)
	if err != nil {
		return err
	}
	logger.Info("refresh done", "updated", sum.Updated, "skipped", sum.Skipped,
		"failed", sum.Failed, "new_points", sum.NewPoints, "elapsed", sum.Elapsed)
	return nil
}
