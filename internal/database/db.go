package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// Daily bars with their computed metric columns.
		`CREATE TABLE IF NOT EXISTS timeseries (
			symbol VARCHAR(20) NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			sma_20 DOUBLE PRECISION,
			sma_50 DOUBLE PRECISION,
			sma_200 DOUBLE PRECISION,
			ema_12 DOUBLE PRECISION,
			ema_20 DOUBLE PRECISION,
			ema_26 DOUBLE PRECISION,
			macd_line DOUBLE PRECISION,
			macd_signal_line DOUBLE PRECISION,
			macd_histogram DOUBLE PRECISION,
			rsi DOUBLE PRECISION,
			atr DOUBLE PRECISION,
			bb_upper DOUBLE PRECISION,
			bb_lower DOUBLE PRECISION,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timeseries_date ON timeseries(date)`,

		// 4-hour bars share the daily shape.
		`CREATE TABLE IF NOT EXISTS timeseries_4h (
			symbol VARCHAR(20) NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			sma_20 DOUBLE PRECISION,
			sma_50 DOUBLE PRECISION,
			sma_200 DOUBLE PRECISION,
			ema_12 DOUBLE PRECISION,
			ema_20 DOUBLE PRECISION,
			ema_26 DOUBLE PRECISION,
			macd_line DOUBLE PRECISION,
			macd_signal_line DOUBLE PRECISION,
			macd_histogram DOUBLE PRECISION,
			rsi DOUBLE PRECISION,
			atr DOUBLE PRECISION,
			bb_upper DOUBLE PRECISION,
			bb_lower DOUBLE PRECISION,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timeseries_4h_date ON timeseries_4h(date)`,

		// Detected pattern events. The deterministic pattern_id makes
		// re-runs idempotent.
		`CREATE TABLE IF NOT EXISTS patterns (
			pattern_id TEXT PRIMARY KEY,
			stock_symbol VARCHAR(20) NOT NULL,
			pattern_type VARCHAR(40) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_symbol ON patterns(stock_symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_type ON patterns(pattern_type)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_end_time ON patterns(end_time)`,

		// Company metadata refreshed by the enrichment step of each
		// daily analytics run.
		`CREATE TABLE IF NOT EXISTS stocks (
			symbol VARCHAR(20) PRIMARY KEY,
			name TEXT NOT NULL,
			exchange TEXT,
			sector TEXT,
			industry TEXT,
			market_cap DOUBLE PRECISION,
			pe_ratio DOUBLE PRECISION,
			dividend_yield DOUBLE PRECISION,
			description TEXT,
			website TEXT,
			logo TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("statements", len(migrations)).Msg("database migrations complete")
	return nil
}
