// Package analytics orchestrates the batch pipeline that keeps the
// database current: fetch bars, compute indicators, detect patterns.
package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/patterns"
)

// Store is the persistence surface the pipeline writes to.
// *database.Repository satisfies it.
type Store interface {
	LatestBarDate(ctx context.Context, tf marketdata.Timeframe, symbol string) (time.Time, bool, error)
	UpsertBars(ctx context.Context, tf marketdata.Timeframe, symbol string, bars []marketdata.Bar) (int, error)
	UpdateMetrics(ctx context.Context, tf marketdata.Timeframe, symbol string, bars []marketdata.Bar, metrics []indicators.Metrics) (int, error)
	InsertPatternEvents(ctx context.Context, events []patterns.PatternEvent) (int, error)
	UpsertStocks(ctx context.Context, profiles []marketdata.CompanyProfile) (int, error)
}

// Cache drops stale bar series after new rows land, so API reads
// repopulate from the database. *cache.BarCache satisfies it.
type Cache interface {
	InvalidateBars(ctx context.Context, symbol string, tf marketdata.Timeframe) error
}

// EventSink receives pattern events produced by a run. The websocket
// hub implements this.
type EventSink interface {
	BroadcastEvents(events []patterns.PatternEvent)
}

// RunSummary reports the outcome of one batch run.
type RunSummary struct {
	RunID         string               `json:"run_id"`
	Timeframe     marketdata.Timeframe `json:"timeframe"`
	StartedAt     time.Time            `json:"started_at"`
	Duration      time.Duration        `json:"duration"`
	SymbolsTotal  int                  `json:"symbols_total"`
	SymbolsFailed int                  `json:"symbols_failed"`
	BarsUpserted  int                  `json:"bars_upserted"`
	PatternsFound int                  `json:"patterns_found"`
	StocksUpdated int                  `json:"stocks_updated"`
}

// Runner executes per-symbol analytics pipelines over a worker pool.
type Runner struct {
	source  marketdata.Source
	store   Store
	cache   Cache     // nil when Redis is disabled
	sink    EventSink // nil when no websocket hub is attached
	symbols []string
	workers int
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
}

// symbolResult carries one worker's outcome back to the collector.
type symbolResult struct {
	symbol   string
	bars     int
	patterns int
	err      error
}

// NewRunner creates a Runner. cacheClient and sink may be nil.
func NewRunner(
	source marketdata.Source,
	store Store,
	cacheClient Cache,
	sink EventSink,
	symbols []string,
	workers int,
	logger zerolog.Logger,
) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		source:  source,
		store:   store,
		cache:   cacheClient,
		sink:    sink,
		symbols: symbols,
		workers: workers,
		logger:  logger.With().Str("component", "analytics").Logger(),
	}
}

// IsRunning reports whether a batch is currently executing.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Symbols returns the configured symbol list.
func (r *Runner) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Run executes one batch over all configured symbols. Concurrent runs
// for the same Runner are rejected so cron overlap cannot pile up.
func (r *Runner) Run(ctx context.Context, tf marketdata.Timeframe) (*RunSummary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, errors.New("analytics run already in progress")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	summary := &RunSummary{
		RunID:        uuid.New().String(),
		Timeframe:    tf,
		StartedAt:    time.Now(),
		SymbolsTotal: len(r.symbols),
	}

	logger := r.logger.With().
		Str("run_id", summary.RunID).
		Str("timeframe", string(tf)).
		Logger()
	logger.Info().Int("symbols", len(r.symbols)).Msg("starting analytics run")

	symbolChan := make(chan string, len(r.symbols))
	resultChan := make(chan symbolResult, len(r.symbols))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go r.worker(ctx, tf, logger, symbolChan, resultChan, &wg)
	}

	for _, symbol := range r.symbols {
		symbolChan <- symbol
	}
	close(symbolChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	for res := range resultChan {
		if res.err != nil {
			summary.SymbolsFailed++
			logger.Error().Err(res.err).Str("symbol", res.symbol).Msg("symbol pipeline failed")
			continue
		}
		summary.BarsUpserted += res.bars
		summary.PatternsFound += res.patterns
	}

	// Company metadata refreshes alongside the daily bars.
	if tf == marketdata.TimeframeDaily {
		summary.StocksUpdated = r.enrichCompanies(ctx, logger)
	}

	summary.Duration = time.Since(summary.StartedAt)
	logger.Info().
		Int("failed", summary.SymbolsFailed).
		Int("bars", summary.BarsUpserted).
		Int("patterns", summary.PatternsFound).
		Int("stocks", summary.StocksUpdated).
		Dur("duration", summary.Duration).
		Msg("analytics run finished")

	return summary, nil
}

func (r *Runner) worker(
	ctx context.Context,
	tf marketdata.Timeframe,
	logger zerolog.Logger,
	symbolChan <-chan string,
	resultChan chan<- symbolResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	for symbol := range symbolChan {
		select {
		case <-ctx.Done():
			resultChan <- symbolResult{symbol: symbol, err: ctx.Err()}
		default:
			bars, found, err := r.processSymbol(ctx, tf, logger, symbol)
			resultChan <- symbolResult{symbol: symbol, bars: bars, patterns: found, err: err}
		}
	}
}

// processSymbol runs the full pipeline for one symbol: fetch, upsert,
// indicators, and (daily only) pattern detection. Only bars newer than
// the latest stored date are written; indicators and detection always
// see the full fetched series.
func (r *Runner) processSymbol(
	ctx context.Context,
	tf marketdata.Timeframe,
	logger zerolog.Logger,
	symbol string,
) (barsUpserted, patternsFound int, err error) {
	bars, err := r.fetchBars(ctx, tf, symbol)
	if err != nil {
		return 0, 0, err
	}
	if len(bars) == 0 {
		logger.Warn().Str("symbol", symbol).Msg("no bars returned, skipping")
		return 0, 0, nil
	}

	newBars := bars
	latest, ok, err := r.store.LatestBarDate(ctx, tf, symbol)
	if err != nil {
		return 0, 0, err
	}
	if ok {
		newBars = barsAfter(bars, latest)
	}

	upserted := 0
	if len(newBars) > 0 {
		upserted, err = r.store.UpsertBars(ctx, tf, symbol, newBars)
		if err != nil {
			return 0, 0, err
		}
		if r.cache != nil {
			if err := r.cache.InvalidateBars(ctx, symbol, tf); err != nil {
				logger.Debug().Err(err).Str("symbol", symbol).Msg("bar cache invalidation skipped")
			}
		}
	}

	metrics := indicators.Compute(bars)
	if _, err := r.store.UpdateMetrics(ctx, tf, symbol, bars, metrics); err != nil {
		return upserted, 0, err
	}

	// Intraday series only carries indicators.
	if tf != marketdata.TimeframeDaily {
		return upserted, 0, nil
	}

	events := r.detectPatterns(logger, symbol, bars)
	if len(events) == 0 {
		return upserted, 0, nil
	}

	inserted, err := r.store.InsertPatternEvents(ctx, events)
	if err != nil {
		return upserted, 0, err
	}

	if r.sink != nil && inserted > 0 {
		r.sink.BroadcastEvents(events)
	}

	return upserted, inserted, nil
}

// barsAfter returns the suffix of an oldest-first series strictly newer
// than the cutoff.
func barsAfter(bars []marketdata.Bar, cutoff time.Time) []marketdata.Bar {
	for i, b := range bars {
		if b.Date.After(cutoff) {
			return bars[i:]
		}
	}
	return nil
}

// enrichCompanies refreshes the stocks table from the provider's
// profile data. Enrichment failures never fail the run.
func (r *Runner) enrichCompanies(ctx context.Context, logger zerolog.Logger) int {
	if len(r.symbols) == 0 {
		return 0
	}

	profiles, err := r.source.CompanyProfiles(ctx, r.symbols)
	if err != nil {
		logger.Warn().Err(err).Msg("company enrichment skipped")
		return 0
	}
	if len(profiles) == 0 {
		return 0
	}

	rows := make([]marketdata.CompanyProfile, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, p)
	}

	updated, err := r.store.UpsertStocks(ctx, rows)
	if err != nil {
		logger.Warn().Err(err).Msg("company metadata upsert failed")
		return 0
	}
	logger.Info().Int("stocks", updated).Msg("company metadata refreshed")
	return updated
}

func (r *Runner) fetchBars(ctx context.Context, tf marketdata.Timeframe, symbol string) ([]marketdata.Bar, error) {
	switch tf {
	case marketdata.TimeframeFourHour:
		return r.source.FourHourBars(ctx, symbol)
	default:
		return r.source.DailyBars(ctx, symbol)
	}
}

// detectPatterns runs detection for one symbol. A ComputeError means
// the series itself is unusable for pattern work; the symbol keeps its
// stored bars and metrics and simply contributes no events.
func (r *Runner) detectPatterns(logger zerolog.Logger, symbol string, bars []marketdata.Bar) []patterns.PatternEvent {
	matrix, err := patterns.Detect(bars)
	if err != nil {
		var computeErr *patterns.ComputeError
		if errors.As(err, &computeErr) {
			logger.Warn().Err(err).Str("symbol", symbol).Msg("pattern detection skipped")
			return nil
		}
		logger.Error().Err(err).Str("symbol", symbol).Msg("pattern detection failed")
		return nil
	}
	return patterns.BuildEvents(matrix, bars, symbol)
}
