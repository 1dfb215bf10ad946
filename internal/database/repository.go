package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/patterns"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// tableFor maps a timeframe to its timeseries table. The table name is
// interpolated into SQL, so it must come from this whitelist.
func tableFor(tf marketdata.Timeframe) (string, error) {
	switch tf {
	case marketdata.TimeframeDaily:
		return "timeseries", nil
	case marketdata.TimeframeFourHour:
		return "timeseries_4h", nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", tf)
	}
}

// ============================================================================
// TIMESERIES
// ============================================================================

// UpsertBars writes a symbol's bars, updating price columns on conflict so
// re-syncs refresh dividend-adjusted history in place.
func (r *Repository) UpsertBars(ctx context.Context, tf marketdata.Timeframe, symbol string, bars []marketdata.Bar) (int, error) {
	table, err := tableFor(tf)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, date, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, table)

	batch := newBatch()
	for _, b := range bars {
		batch.Queue(query, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	if err := r.sendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert %s bars for %s: %w", table, symbol, err)
	}
	return len(bars), nil
}

// UpdateMetrics writes the metric columns for bars already present in the
// table. Metrics must align 1:1 with bars.
func (r *Repository) UpdateMetrics(ctx context.Context, tf marketdata.Timeframe, symbol string, bars []marketdata.Bar, metrics []indicators.Metrics) (int, error) {
	table, err := tableFor(tf)
	if err != nil {
		return 0, err
	}
	if len(bars) != len(metrics) {
		return 0, fmt.Errorf("metrics length %d does not match bars length %d", len(metrics), len(bars))
	}
	if len(bars) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		UPDATE %s SET
			sma_20 = $3, sma_50 = $4, sma_200 = $5,
			ema_12 = $6, ema_20 = $7, ema_26 = $8,
			macd_line = $9, macd_signal_line = $10, macd_histogram = $11,
			rsi = $12, atr = $13,
			bb_upper = $14, bb_lower = $15
		WHERE symbol = $1 AND date = $2
	`, table)

	batch := newBatch()
	for i, b := range bars {
		args := append([]any{symbol, b.Date}, metricColumns(metrics[i])...)
		batch.Queue(query, args...)
	}
	if err := r.sendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("update %s metrics for %s: %w", table, symbol, err)
	}
	return len(bars), nil
}

// GetBars fetches a symbol's bars ordered oldest first.
func (r *Repository) GetBars(ctx context.Context, tf marketdata.Timeframe, symbol string) ([]marketdata.Bar, error) {
	table, err := tableFor(tf)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume
		FROM %s
		WHERE symbol = $1
		ORDER BY date ASC
	`, table)

	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", table, symbol, err)
	}
	defer rows.Close()

	var bars []marketdata.Bar
	for rows.Next() {
		var b marketdata.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// GetTimeseries fetches a symbol's daily rows with metrics inside an
// optional date range, ordered oldest first. Zero time bounds are open.
func (r *Repository) GetTimeseries(ctx context.Context, symbol string, start, end time.Time) ([]TimeseriesRow, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume,
			sma_20, sma_50, sma_200,
			ema_12, ema_20, ema_26,
			macd_line, macd_signal_line, macd_histogram,
			rsi, atr, bb_upper, bb_lower
		FROM timeseries
		WHERE symbol = $1
			AND ($2::timestamptz IS NULL OR date >= $2)
			AND ($3::timestamptz IS NULL OR date <= $3)
		ORDER BY date ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, symbol, nullTime(start), nullTime(end))
	if err != nil {
		return nil, fmt.Errorf("query timeseries for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []TimeseriesRow
	for rows.Next() {
		var t TimeseriesRow
		if err := rows.Scan(
			&t.Symbol, &t.Date, &t.Open, &t.High, &t.Low, &t.Close, &t.Volume,
			&t.SMA20, &t.SMA50, &t.SMA200,
			&t.EMA12, &t.EMA20, &t.EMA26,
			&t.MACDLine, &t.MACDSignalLine, &t.MACDHistogram,
			&t.RSI, &t.ATR, &t.BBUpper, &t.BBLower,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestBarDate returns the newest stored bar date for a symbol, with ok
// false when the symbol has no rows.
func (r *Repository) LatestBarDate(ctx context.Context, tf marketdata.Timeframe, symbol string) (time.Time, bool, error) {
	table, err := tableFor(tf)
	if err != nil {
		return time.Time{}, false, err
	}

	var latest *time.Time
	query := fmt.Sprintf(`SELECT MAX(date) FROM %s WHERE symbol = $1`, table)
	if err := r.db.Pool.QueryRow(ctx, query, symbol).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest %s date for %s: %w", table, symbol, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// ============================================================================
// PATTERNS
// ============================================================================

// InsertPatternEvents persists detected events, skipping IDs already
// stored so analytics re-runs stay idempotent.
func (r *Repository) InsertPatternEvents(ctx context.Context, events []patterns.PatternEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO patterns (pattern_id, stock_symbol, pattern_type, start_time, end_time, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pattern_id) DO NOTHING
	`

	batch := newBatch()
	for _, ev := range events {
		batch.Queue(query, ev.ID, ev.Symbol, string(ev.Type), ev.StartTime, ev.EndTime, ev.Confidence)
	}
	if err := r.sendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("insert pattern events: %w", err)
	}
	return len(events), nil
}

// GetPatterns fetches stored events of one type for a symbol, newest
// first. A zero start time is open.
func (r *Repository) GetPatterns(ctx context.Context, patternType patterns.PatternType, symbol string, start time.Time) ([]patterns.PatternEvent, error) {
	query := `
		SELECT pattern_id, stock_symbol, pattern_type, start_time, end_time, confidence
		FROM patterns
		WHERE pattern_type = $1 AND stock_symbol = $2
			AND ($3::timestamptz IS NULL OR end_time >= $3)
		ORDER BY end_time DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, string(patternType), symbol, nullTime(start))
	if err != nil {
		return nil, fmt.Errorf("query patterns for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []patterns.PatternEvent
	for rows.Next() {
		var ev patterns.PatternEvent
		var pt string
		if err := rows.Scan(&ev.ID, &ev.Symbol, &pt, &ev.StartTime, &ev.EndTime, &ev.Confidence); err != nil {
			return nil, err
		}
		ev.Type = patterns.PatternType(pt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ============================================================================
// STOCKS
// ============================================================================

// UpsertStocks writes enriched company metadata, replacing existing rows
// so repeated enrichment keeps the table current. Profiles without a
// symbol or name are skipped.
func (r *Repository) UpsertStocks(ctx context.Context, profiles []marketdata.CompanyProfile) (int, error) {
	query := `
		INSERT INTO stocks (symbol, name, exchange, sector, industry,
			market_cap, pe_ratio, dividend_yield, description, website, logo, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			exchange = EXCLUDED.exchange,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			market_cap = EXCLUDED.market_cap,
			pe_ratio = EXCLUDED.pe_ratio,
			dividend_yield = EXCLUDED.dividend_yield,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			logo = EXCLUDED.logo,
			updated_at = EXCLUDED.updated_at
	`

	batch := newBatch()
	queued := 0
	for _, p := range profiles {
		if p.Symbol == "" || p.Name == "" {
			continue
		}
		batch.Queue(query, p.Symbol, p.Name, p.Exchange, p.Sector, p.Industry,
			p.MarketCap, p.PERatio, p.DividendYield, p.Description, p.Website, p.Logo)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}
	if err := r.sendBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert stocks: %w", err)
	}
	return queued, nil
}

// GetStocks fetches all company metadata rows ordered by name.
func (r *Repository) GetStocks(ctx context.Context) ([]StockRow, error) {
	query := `
		SELECT symbol, name, exchange, sector, industry,
			market_cap, pe_ratio, dividend_yield, description, website, logo, updated_at
		FROM stocks
		ORDER BY name ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var out []StockRow
	for rows.Next() {
		var s StockRow
		if err := rows.Scan(
			&s.Symbol, &s.Name, &s.Exchange, &s.Sector, &s.Industry,
			&s.MarketCap, &s.PERatio, &s.DividendYield, &s.Description, &s.Website, &s.Logo, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStock fetches one company metadata row, returning nil when the
// symbol is unknown.
func (r *Repository) GetStock(ctx context.Context, symbol string) (*StockRow, error) {
	query := `
		SELECT symbol, name, exchange, sector, industry,
			market_cap, pe_ratio, dividend_yield, description, website, logo, updated_at
		FROM stocks
		WHERE symbol = $1
	`

	var s StockRow
	err := r.db.Pool.QueryRow(ctx, query, symbol).Scan(
		&s.Symbol, &s.Name, &s.Exchange, &s.Sector, &s.Industry,
		&s.MarketCap, &s.PERatio, &s.DividendYield, &s.Description, &s.Website, &s.Logo, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock %s: %w", symbol, err)
	}
	return &s, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
