// Package api exposes the analytics database and engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stock-analytics-service/config"
	"stock-analytics-service/internal/analytics"
	"stock-analytics-service/internal/cache"
	"stock-analytics-service/internal/database"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/patterns"
)

// Repository is the read surface the handlers query.
// *database.Repository satisfies it.
type Repository interface {
	HealthCheck(ctx context.Context) error
	GetTimeseries(ctx context.Context, symbol string, start, end time.Time) ([]database.TimeseriesRow, error)
	GetPatterns(ctx context.Context, patternType patterns.PatternType, symbol string, start time.Time) ([]patterns.PatternEvent, error)
	GetBars(ctx context.Context, tf marketdata.Timeframe, symbol string) ([]marketdata.Bar, error)
	GetStocks(ctx context.Context) ([]database.StockRow, error)
	GetStock(ctx context.Context, symbol string) (*database.StockRow, error)
}

// SecretsChecker reports secret store connectivity for the health
// endpoint. *vault.Client satisfies it.
type SecretsChecker interface {
	HealthCheck(ctx context.Context) error
}

// RateLimiter provides simple in-memory rate limiting per client.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	repo        Repository
	runner      *analytics.Runner
	barCache    *cache.BarCache
	secrets     SecretsChecker
	hub         *WSHub
	config      config.ServerConfig
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewServer creates the API server and registers all routes. barCache,
// secrets and hub may be nil when Redis, Vault or the websocket feed is
// disabled.
func NewServer(
	cfg config.ServerConfig,
	repo Repository,
	runner *analytics.Runner,
	barCache *cache.BarCache,
	secrets SecretsChecker,
	hub *WSHub,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	origins := splitOrigins(cfg.AllowedOrigins)
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		repo:        repo,
		runner:      runner,
		barCache:    barCache,
		secrets:     secrets,
		hub:         hub,
		config:      cfg,
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()

	return server
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// rateLimitMiddleware limits requests per client IP.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	{
		api.GET("/stocks", s.handleListStocks)
		api.GET("/stocks/:symbol", s.handleGetStock)
		api.GET("/timeseries", s.handleGetTimeseries)
		api.GET("/patterns/:pattern_type", s.handleGetPatterns)
		api.GET("/patterns/:pattern_type/geometry", s.handleGetPatternGeometry)
		api.GET("/strategies", s.handleListStrategies)
		api.GET("/strategies/:name", s.handleRunStrategy)
		api.POST("/sync", s.handleSync)
	}

	if s.hub != nil {
		s.router.GET("/ws", s.handleWebSocket)
	}
}

// Start runs the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
