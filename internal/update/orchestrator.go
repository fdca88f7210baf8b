package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"marketcorr/internal/domain"
	"marketcorr/internal/provider"
	"marketcorr/internal/store"
	"marketcorr/internal/util"
)

// degradeAfter is how many consecutive rate-limit signals trigger the
// one-directional switch to the fallback transport.
const degradeAfter = 3

// minFullDownloadPoints is the smallest history a full download must
// yield to be persisted. Shorter histories cannot support a meaningful
// correlation and the symbol is marked failed for the run.
const minFullDownloadPoints = 100

// Options tunes a run. Zero values fall back to the defaults below.
type Options struct {
	StartDate         string        // history start for full downloads
	BatchSize         int           // symbols per sequential batch
	MaxWorkers        int           // concurrent fetches within a batch
	BatchPause        time.Duration // pause between batches
	DegradedPause     time.Duration // extra pacing per fetch after degradation
	RetryAttempts     int
	RetryBase         time.Duration
	RequestsPerMinute int // 0 disables the upstream request budget
}

func (o Options) withDefaults() Options {
	if o.StartDate == "" {
		o.StartDate = "2010-01-01"
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 5
	}
	if o.BatchPause <= 0 {
		o.BatchPause = 2 * time.Second
	}
	if o.DegradedPause <= 0 {
		o.DegradedPause = 500 * time.Millisecond
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 1 * time.Second
	}
	return o
}

// Summary aggregates a run. Counters are commutative sums and Results a
// keyed map, so the completion order of workers never affects the result.
type Summary struct {
	Total     int           `json:"total"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	NewPoints int           `json:"new_points"`
	Outdated  int           `json:"outdated"`
	Degraded  bool          `json:"degraded"`
	Elapsed   time.Duration `json:"elapsed"`

	// Results maps each symbol to its outcome: "updated", "skipped", or
	// "failed: <cause>".
	Results map[string]string `json:"results,omitempty"`
}

// Namer is implemented by providers that can resolve display names.
type Namer interface {
	DisplayName(symbol string) string
}

// Orchestrator drives batched concurrent updates of the store. Batches
// run strictly sequentially; fetches within a batch share a bounded
// worker pool. After repeated throttling the run switches to the
// fallback transport and stays there (no flapping back).
type Orchestrator struct {
	store    *store.Store
	primary  provider.PriceHistory
	fallback provider.PriceHistory
	runs     *store.RunStore // optional run history
	opts     Options
	limiter  *util.RateLimiter // nil when no request budget is set
	log      *slog.Logger

	mu          sync.Mutex
	degraded    bool
	consecutive int // consecutive rate-limit signals
}

// New creates an Orchestrator. fallback may equal primary when no
// separate transport is available; runs may be nil.
func New(st *store.Store, primary, fallback provider.PriceHistory, runs *store.RunStore, opts Options, log *slog.Logger) *Orchestrator {
	if fallback == nil {
		fallback = primary
	}
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		store:    st,
		primary:  primary,
		fallback: fallback,
		runs:     runs,
		opts:     opts.withDefaults(),
		log:      log,
	}
	if o.opts.RequestsPerMinute > 0 {
		// Burst sized to the worker pool so a fresh batch can start
		// together before settling into the steady rate.
		o.limiter = util.NewRateLimiter(o.opts.RequestsPerMinute, o.opts.MaxWorkers)
	}
	return o
}

// Update brings every symbol current relative to targetDate, fetching
// incrementally from each symbol's resume date. Fresh symbols are
// skipped; symbols without a record get a full download.
func (o *Orchestrator) Update(ctx context.Context, symbols []string, targetDate string) (Summary, error) {
	return o.run(ctx, "update", symbols, func(ctx context.Context, symbol string, sum *summary) {
		o.updateSymbol(ctx, symbol, targetDate, sum)
	})
}

// Download performs the initial bulk download: every symbol that does
// not already hold at least minFullDownloadPoints points is fetched in
// full from the configured start date.
func (o *Orchestrator) Download(ctx context.Context, symbols []string) (Summary, error) {
	return o.run(ctx, "download", symbols, func(ctx context.Context, symbol string, sum *summary) {
		o.downloadSymbol(ctx, symbol, sum)
	})
}

// Refresh is the standard incremental flow. The indices are brought
// current first with no fixed target date: an index's own stored date
// can never serve as its freshness target, or it would always report
// fresh and the store would stop advancing. The refreshed indices then
// establish the market date the remaining symbols are updated against.
func (o *Orchestrator) Refresh(ctx context.Context, symbols []string) (Summary, error) {
	var indices, rest []string
	for _, s := range symbols {
		if strings.HasPrefix(s, "^") {
			indices = append(indices, s)
		} else {
			rest = append(rest, s)
		}
	}

	var total Summary
	if len(indices) > 0 {
		sum, err := o.Update(ctx, indices, "")
		total = mergeSummaries(total, sum)
		if err != nil {
			return total, err
		}
	}
	if len(rest) > 0 {
		sum, err := o.Update(ctx, rest, LatestMarketDate(o.store))
		total = mergeSummaries(total, sum)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func mergeSummaries(a, b Summary) Summary {
	a.Total += b.Total
	a.Updated += b.Updated
	a.Skipped += b.Skipped
	a.Failed += b.Failed
	a.NewPoints += b.NewPoints
	a.Outdated += b.Outdated
	a.Degraded = a.Degraded || b.Degraded
	a.Elapsed += b.Elapsed
	if a.Results == nil {
		a.Results = make(map[string]string, len(b.Results))
	}
	for sym, outcome := range b.Results {
		a.Results[sym] = outcome
	}
	return a
}

// summary is the mutex-guarded mutable form of Summary used during a run.
type summary struct {
	mu sync.Mutex
	Summary
}

func (s *summary) add(f func(*Summary)) {
	s.mu.Lock()
	f(&s.Summary)
	s.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, kind string, symbols []string, work func(context.Context, string, *summary)) (Summary, error) {
	started := time.Now()
	sum := &summary{}
	sum.Total = len(symbols)
	sum.Results = make(map[string]string, len(symbols))

	o.log.Info("starting run", "kind", kind, "symbols", len(symbols),
		"batch_size", o.opts.BatchSize, "workers", o.opts.MaxWorkers)

	for start := 0; start < len(symbols); start += o.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return sum.Summary, err
		}

		end := start + o.opts.BatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		// Batches are sequential; only fetches within a batch overlap.
		// Each symbol appears in exactly one batch, so no symbol has two
		// concurrent writers.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.opts.MaxWorkers)
		for _, symbol := range batch {
			symbol := symbol
			g.Go(func() error {
				work(gctx, symbol, sum)
				return nil
			})
		}
		g.Wait()

		o.log.Debug("batch done", "kind", kind, "from", start, "to", end)

		if end < len(symbols) {
			select {
			case <-ctx.Done():
				return sum.Summary, ctx.Err()
			case <-time.After(o.opts.BatchPause):
			}
		}
	}

	sum.Degraded = o.isDegraded()
	sum.Elapsed = time.Since(started)

	o.log.Info("run finished", "kind", kind, "updated", sum.Updated,
		"skipped", sum.Skipped, "failed", sum.Failed, "new_points", sum.NewPoints,
		"outdated", sum.Outdated, "degraded", sum.Degraded, "elapsed", sum.Elapsed)

	o.recordMetadata(kind, started)

	if o.runs != nil {
		if err := o.runs.RecordRun(ctx, store.Run{
			Kind:      kind,
			Total:     sum.Total,
			Updated:   sum.Updated,
			Skipped:   sum.Skipped,
			Failed:    sum.Failed,
			NewPoints: sum.NewPoints,
			Degraded:  sum.Degraded,
			ElapsedMS: sum.Elapsed.Milliseconds(),
			StartedAt: started,
		}); err != nil {
			o.log.Warn("recording run failed", "error", err)
		}
	}

	return sum.Summary, nil
}

// recordMetadata refreshes the advisory store-level bookkeeping file.
func (o *Orchestrator) recordMetadata(kind string, started time.Time) {
	meta := o.store.LoadMetadata()
	if kind == "download" {
		meta.LastFullDownload = started
	}
	meta.LastUpdate = started
	meta.StartDate = o.opts.StartDate
	if symbols, err := o.store.ListSymbols(); err == nil {
		meta.TotalSymbols = len(symbols)
	}
	if err := o.store.SaveMetadata(meta); err != nil {
		o.log.Warn("writing store metadata failed", "error", err)
	}
}

// updateSymbol refreshes one symbol. Failures are tallied, never fatal
// to the batch.
func (o *Orchestrator) updateSymbol(ctx context.Context, symbol, targetDate string, sum *summary) {
	last, stale := NeedsUpdate(o.store, symbol, targetDate)
	if !stale {
		sum.add(func(s *Summary) {
			s.Skipped++
			s.Results[symbol] = "skipped"
		})
		return
	}

	if last == "" {
		o.downloadSymbol(ctx, symbol, sum)
		return
	}

	outdated := isOutdated(last, targetDate)

	points, err := o.fetch(ctx, symbol, ResumeDate(last), targetDate)
	if err != nil {
		o.log.Warn("incremental fetch failed", "symbol", symbol, "error", err)
		sum.add(func(s *Summary) {
			s.Failed++
			s.Results[symbol] = "failed: " + err.Error()
			if outdated {
				s.Outdated++
			}
		})
		return
	}

	added, err := o.store.MergeAppend(symbol, points)
	if err != nil {
		o.log.Warn("merge failed", "symbol", symbol, "error", err)
		sum.add(func(s *Summary) {
			s.Failed++
			s.Results[symbol] = "failed: " + err.Error()
		})
		return
	}

	sum.add(func(s *Summary) {
		s.Updated++
		s.NewPoints += added
		s.Results[symbol] = "updated"
		if outdated {
			s.Outdated++
		}
	})
}

// downloadSymbol fetches the full history for one symbol and persists it
// when long enough to be useful.
func (o *Orchestrator) downloadSymbol(ctx context.Context, symbol string, sum *summary) {
	if existing, err := o.store.Load(symbol); err == nil && existing.Len() >= minFullDownloadPoints {
		sum.add(func(s *Summary) {
			s.Skipped++
			s.Results[symbol] = "skipped"
		})
		return
	}

	points, err := o.fetch(ctx, symbol, o.opts.StartDate, "")
	if err != nil {
		if !errors.Is(err, provider.ErrNoData) {
			o.log.Warn("full download failed", "symbol", symbol, "error", err)
		}
		sum.add(func(s *Summary) {
			s.Failed++
			s.Results[symbol] = "failed: " + err.Error()
		})
		return
	}
	if len(points) < minFullDownloadPoints {
		o.log.Debug("history too short", "symbol", symbol, "points", len(points))
		sum.add(func(s *Summary) {
			s.Failed++
			s.Results[symbol] = "failed: history too short"
		})
		return
	}

	series := &domain.Series{
		Symbol:    symbol,
		Name:      o.displayName(symbol),
		StartDate: points[0].Date,
	}
	for _, p := range points {
		series.Dates = append(series.Dates, p.Date)
		series.Close = append(series.Close, p.Close)
	}

	if err := o.store.Save(series); err != nil {
		o.log.Warn("save failed", "symbol", symbol, "error", err)
		sum.add(func(s *Summary) {
			s.Failed++
			s.Results[symbol] = "failed: " + err.Error()
		})
		return
	}

	sum.add(func(s *Summary) {
		s.Updated++
		s.NewPoints += len(points)
		s.Results[symbol] = "updated"
	})
}

// displayName resolves a human-readable name for symbol: index names are
// static configuration, equities ask the primary provider when it can.
func (o *Orchestrator) displayName(symbol string) string {
	if def, ok := domain.Indices[symbol]; ok {
		return def.Name
	}
	if n, ok := o.primary.(Namer); ok {
		return n.DisplayName(symbol)
	}
	return symbol
}

// fetch retrieves points through the currently active transport with
// retry on transient failures, recording throttle signals as it goes.
func (o *Orchestrator) fetch(ctx context.Context, symbol, start, end string) ([]domain.Point, error) {
	var points []domain.Point
	err := util.Retry(ctx, o.opts.RetryAttempts, o.opts.RetryBase, provider.IsTransient, func() error {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		p := o.transport(symbol)
		if o.isDegraded() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.opts.DegradedPause):
			}
		}

		pts, err := p.Fetch(ctx, symbol, start, end)
		o.observe(err)
		if err != nil {
			return fmt.Errorf("%s via %s: %w", symbol, p.Name(), err)
		}
		points = pts
		return nil
	})
	return points, err
}

// observe feeds a fetch outcome into the degradation state machine. The
// transition fires after degradeAfter consecutive rate-limit signals and
// is one-directional for the remainder of the run.
func (o *Orchestrator) observe(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err == nil || !provider.IsRateLimited(err) {
		o.consecutive = 0
		return
	}

	o.consecutive++
	if o.consecutive >= degradeAfter && !o.degraded {
		o.degraded = true
		o.log.Warn("repeated throttling, switching to fallback transport",
			"signals", o.consecutive, "fallback", o.fallback.Name())
	}
}

// transport returns the transport for symbol's next fetch. Index codes
// always go through the fallback, the only transport that serves them;
// everything else uses the primary until the run degrades.
func (o *Orchestrator) transport(symbol string) provider.PriceHistory {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.degraded || strings.HasPrefix(symbol, "^") {
		return o.fallback
	}
	return o.primary
}

func (o *Orchestrator) isDegraded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.degraded
}
