package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stock-analytics-service/internal/cache"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/patterns"
	"stock-analytics-service/internal/strategy"
)

const dateLayout = "2006-01-02"

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"component": "database",
			"error":     err.Error(),
		})
		return
	}

	if s.secrets != nil {
		if err := s.secrets.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"component": "vault",
				"error":     err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// parseDateQuery reads an optional YYYY-MM-DD query parameter. A zero
// time means the parameter was absent.
func parseDateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be formatted as YYYY-MM-DD",
		})
		return time.Time{}, false
	}
	return t, true
}

func requireSymbol(c *gin.Context) (string, bool) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter is required"})
		return "", false
	}
	return symbol, true
}

// parsePatternType validates the path parameter against the registered
// pattern types.
func parsePatternType(c *gin.Context) (patterns.PatternType, bool) {
	pt := patterns.PatternType(c.Param("pattern_type"))
	if patterns.Lookback(pt) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown pattern type: " + string(pt),
		})
		return "", false
	}
	return pt, true
}

func (s *Server) handleListStocks(c *gin.Context) {
	stocks, err := s.repo.GetStocks(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("stocks query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stocks"})
		return
	}

	c.JSON(http.StatusOK, stocks)
}

func (s *Server) handleGetStock(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	stock, err := s.repo.GetStock(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("stock query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stock"})
		return
	}
	if stock == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stock not found: " + symbol})
		return
	}

	c.JSON(http.StatusOK, stock)
}

func (s *Server) handleGetTimeseries(c *gin.Context) {
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	start, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}
	end, ok := parseDateQuery(c, "end_date")
	if !ok {
		return
	}

	rows, err := s.repo.GetTimeseries(c.Request.Context(), symbol, start, end)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("timeseries query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load timeseries"})
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleGetPatterns(c *gin.Context) {
	pt, ok := parsePatternType(c)
	if !ok {
		return
	}
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}
	start, ok := parseDateQuery(c, "start_date")
	if !ok {
		return
	}

	events, err := s.repo.GetPatterns(c.Request.Context(), pt, symbol, start)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("patterns query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load patterns"})
		return
	}

	c.JSON(http.StatusOK, events)
}

// handleGetPatternGeometry recomputes the chart geometry for one stored
// event. Detection is deterministic, so replaying the stored bars always
// reproduces the lines the detector saw.
func (s *Server) handleGetPatternGeometry(c *gin.Context) {
	pt, ok := parsePatternType(c)
	if !ok {
		return
	}
	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}

	rawEnd := c.Query("end_time")
	if rawEnd == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time query parameter is required"})
		return
	}
	endTime, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be RFC3339"})
		return
	}

	bars, err := s.loadBars(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("bar load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bars"})
		return
	}

	endIdx := -1
	for i, b := range bars {
		if b.Date.Equal(endTime) {
			endIdx = i
			break
		}
	}
	if endIdx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bar found at end_time"})
		return
	}

	window := patterns.EventWindow(bars, pt, endIdx)
	if window == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "insufficient history for pattern window"})
		return
	}

	geometry, err := patterns.ExtractGeometry(window, pt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to extract geometry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pattern_id":   patterns.EventID(symbol, pt, endTime),
		"stock_symbol": symbol,
		"pattern_type": pt,
		"end_time":     endTime,
		"geometry":     geometry,
	})
}

func (s *Server) handleListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Names()})
}

func (s *Server) handleRunStrategy(c *gin.Context) {
	name := c.Param("name")
	strat, ok := strategy.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy: " + name})
		return
	}

	symbol, ok := requireSymbol(c)
	if !ok {
		return
	}

	bars, err := s.loadBars(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("bar load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bars"})
		return
	}

	c.JSON(http.StatusOK, strat.Run(symbol, bars))
}

// handleSync kicks off a full analytics run in the background.
func (s *Server) handleSync(c *gin.Context) {
	tf := marketdata.TimeframeDaily
	if raw := c.Query("timeframe"); raw != "" {
		switch marketdata.Timeframe(raw) {
		case marketdata.TimeframeDaily:
		case marketdata.TimeframeFourHour:
			tf = marketdata.TimeframeFourHour
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe: " + raw})
			return
		}
	}

	if s.runner.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "an analytics run is already in progress"})
		return
	}

	go func() {
		summary, err := s.runner.Run(context.Background(), tf)
		if err != nil {
			s.logger.Error().Err(err).Msg("triggered analytics run failed")
			return
		}
		s.logger.Info().
			Str("run_id", summary.RunID).
			Int("patterns", summary.PatternsFound).
			Msg("triggered analytics run finished")
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "started",
		"timeframe": tf,
		"symbols":   len(s.runner.Symbols()),
	})
}

// loadBars reads the daily series for a symbol, preferring the Redis
// cache and falling back to the database on a miss.
func (s *Server) loadBars(ctx context.Context, symbol string) ([]marketdata.Bar, error) {
	if s.barCache != nil {
		bars, err := s.barCache.GetBars(ctx, symbol, marketdata.TimeframeDaily)
		if err == nil {
			return bars, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug().Err(err).Str("symbol", symbol).Msg("bar cache read skipped")
		}
	}

	bars, err := s.repo.GetBars(ctx, marketdata.TimeframeDaily, symbol)
	if err != nil {
		return nil, err
	}

	if s.barCache != nil && len(bars) > 0 {
		if err := s.barCache.SetBars(ctx, symbol, marketdata.TimeframeDaily, bars); err != nil {
			s.logger.Debug().Err(err).Str("symbol", symbol).Msg("bar cache write skipped")
		}
	}

	return bars, nil
}
