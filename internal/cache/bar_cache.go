// Package cache provides Redis-based caching for fetched market data bars.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stock-analytics-service/config"
	"stock-analytics-service/internal/marketdata"
)

// ErrCacheMiss is returned when no entry exists for a key.
var ErrCacheMiss = redis.Nil

// BarCache caches bar series in Redis with graceful degradation.
// When Redis is unavailable, operations return errors that callers
// handle by going straight to the provider or database.
type BarCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewBarCache creates a BarCache with the provided configuration.
// A failed initial connection returns the cache in degraded mode rather
// than an error, so the service can start without Redis.
func NewBarCache(cfg config.RedisConfig, logger zerolog.Logger) (*BarCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}

	bc := &BarCache{
		client:        client,
		ttl:           ttl,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		bc.logger.Warn().Err(err).Msg("initial redis connection failed, cache degraded")
		return bc, nil
	}

	bc.healthy = true
	bc.lastCheck = time.Now()
	bc.logger.Info().Str("address", cfg.Address).Msg("redis connected")

	return bc, nil
}

// IsHealthy reports whether Redis is currently available.
func (bc *BarCache) IsHealthy() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.healthy
}

func (bc *BarCache) recordFailure() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	bc.failureCount++
	if bc.failureCount >= bc.maxFailures {
		if bc.healthy {
			bc.logger.Warn().Int("failures", bc.failureCount).Msg("redis marked unhealthy")
		}
		bc.healthy = false
	}
}

func (bc *BarCache) recordSuccess() {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if !bc.healthy {
		bc.logger.Info().Msg("redis recovered")
	}
	bc.healthy = true
	bc.failureCount = 0
	bc.lastCheck = time.Now()
}

// checkHealth re-pings Redis in the background once the backoff interval
// has elapsed since the cache was last known healthy.
func (bc *BarCache) checkHealth() {
	bc.mu.RLock()
	shouldCheck := !bc.healthy && time.Since(bc.lastCheck) >= bc.checkInterval
	bc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := bc.client.Ping(pingCtx).Err(); err == nil {
			bc.recordSuccess()
		}
	}()
}

func barKey(symbol string, tf marketdata.Timeframe) string {
	return fmt.Sprintf("bars:%s:%s", symbol, tf)
}

// GetBars retrieves a cached bar series. Returns ErrCacheMiss when the
// key is absent and an error when Redis is unavailable.
func (bc *BarCache) GetBars(ctx context.Context, symbol string, tf marketdata.Timeframe) ([]marketdata.Bar, error) {
	bc.checkHealth()

	if !bc.IsHealthy() {
		return nil, fmt.Errorf("redis unavailable")
	}

	raw, err := bc.client.Get(ctx, barKey(symbol, tf)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		bc.recordFailure()
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	bc.recordSuccess()

	var bars []marketdata.Bar
	if err := json.Unmarshal([]byte(raw), &bars); err != nil {
		return nil, fmt.Errorf("decode cached bars: %w", err)
	}
	return bars, nil
}

// SetBars stores a bar series with the configured TTL.
func (bc *BarCache) SetBars(ctx context.Context, symbol string, tf marketdata.Timeframe, bars []marketdata.Bar) error {
	bc.checkHealth()

	if !bc.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("encode bars: %w", err)
	}

	if err := bc.client.Set(ctx, barKey(symbol, tf), data, bc.ttl).Err(); err != nil {
		bc.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	bc.recordSuccess()
	return nil
}

// InvalidateBars removes the cached series for a symbol and timeframe.
// Called after a sync writes fresh bars to the database.
func (bc *BarCache) InvalidateBars(ctx context.Context, symbol string, tf marketdata.Timeframe) error {
	if !bc.IsHealthy() {
		return fmt.Errorf("redis unavailable")
	}

	if err := bc.client.Del(ctx, barKey(symbol, tf)).Err(); err != nil {
		bc.recordFailure()
		return fmt.Errorf("redis del failed: %w", err)
	}

	bc.recordSuccess()
	return nil
}

// Close releases the underlying Redis connection pool.
func (bc *BarCache) Close() error {
	return bc.client.Close()
}
