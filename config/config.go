package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MarketDataConfig MarketDataConfig `json:"market_data"`
	AnalyticsConfig  AnalyticsConfig  `json:"analytics"`
	SchedulerConfig  SchedulerConfig  `json:"scheduler"`
	LoggingConfig    LoggingConfig    `json:"logging"`

	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	VaultConfig    VaultConfig    `json:"vault"`
	RedisConfig    RedisConfig    `json:"redis"`
}

// defaultSymbols is the stock universe processed when no symbol list is
// configured.
var defaultSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META",
	"TSLA", "NVDA", "JPM", "V", "JNJ",
	"WMT", "PG", "MA", "UNH", "HD",
	"DIS", "BAC", "ADBE", "NFLX", "CRM",
}

// MarketDataConfig holds the market data provider configuration
type MarketDataConfig struct {
	BaseURL           string `json:"base_url"`
	APIKey            string `json:"api_key"` // Fallback when Vault is disabled
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// AnalyticsConfig holds the batch analytics run configuration
type AnalyticsConfig struct {
	Symbols []string `json:"symbols"`
	Workers int      `json:"workers"` // Concurrent per-symbol pipelines
}

// SchedulerConfig holds the cron-driven run configuration
type SchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	DailySpec    string `json:"daily_spec"`     // Cron spec for the daily run
	FourHourSpec string `json:"four_hour_spec"` // Cron spec for the 4h metrics run
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level"` // debug, info, warn, error
	Console    bool   `json:"console"`
	File       bool   `json:"file"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path of the market data API key
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for the bar cache
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	PoolSize   int    `json:"pool_size"`
	TTLMinutes int    `json:"ttl_minutes"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.MarketDataConfig.BaseURL = getEnvOrDefault("FMP_BASE_URL", cfg.MarketDataConfig.BaseURL)
	if cfg.MarketDataConfig.BaseURL == "" {
		cfg.MarketDataConfig.BaseURL = "https://financialmodelingprep.com/stable"
	}
	cfg.MarketDataConfig.APIKey = getEnvOrDefault("FMP_API_KEY", cfg.MarketDataConfig.APIKey)
	cfg.MarketDataConfig.RequestsPerMinute = getEnvIntOrDefault("FMP_REQUESTS_PER_MINUTE", cfg.MarketDataConfig.RequestsPerMinute)
	if cfg.MarketDataConfig.RequestsPerMinute <= 0 {
		cfg.MarketDataConfig.RequestsPerMinute = 300
	}

	if symbols := os.Getenv("ANALYTICS_SYMBOLS"); symbols != "" {
		cfg.AnalyticsConfig.Symbols = splitSymbols(symbols)
	}
	if len(cfg.AnalyticsConfig.Symbols) == 0 {
		cfg.AnalyticsConfig.Symbols = append([]string(nil), defaultSymbols...)
	}
	cfg.AnalyticsConfig.Workers = getEnvIntOrDefault("ANALYTICS_WORKERS", cfg.AnalyticsConfig.Workers)
	if cfg.AnalyticsConfig.Workers <= 0 {
		cfg.AnalyticsConfig.Workers = 4
	}

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.SchedulerConfig.Enabled = v == "true" || v == "1"
	}
	cfg.SchedulerConfig.DailySpec = getEnvOrDefault("SCHEDULER_DAILY_SPEC", cfg.SchedulerConfig.DailySpec)
	if cfg.SchedulerConfig.DailySpec == "" {
		// After US market close, every weekday.
		cfg.SchedulerConfig.DailySpec = "0 22 * * 1-5"
	}
	cfg.SchedulerConfig.FourHourSpec = getEnvOrDefault("SCHEDULER_FOUR_HOUR_SPEC", cfg.SchedulerConfig.FourHourSpec)
	if cfg.SchedulerConfig.FourHourSpec == "" {
		cfg.SchedulerConfig.FourHourSpec = "0 */4 * * *"
	}

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.FilePath == "" {
		cfg.LoggingConfig.Console = true
	}

	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout == 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout == 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.DatabaseConfig.Port)
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	if cfg.DatabaseConfig.User == "" {
		cfg.DatabaseConfig.User = "postgres"
	}
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
	if cfg.DatabaseConfig.Database == "" {
		cfg.DatabaseConfig.Database = "stock_analytics"
	}
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", cfg.DatabaseConfig.SSLMode)
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	if v := os.Getenv("VAULT_ENABLED"); v != "" {
		cfg.VaultConfig.Enabled = v == "true" || v == "1"
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "market-data/fmp"
	}

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true" || v == "1"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.RedisConfig.TTLMinutes == 0 {
		cfg.RedisConfig.TTLMinutes = 60
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if sym := strings.ToUpper(strings.TrimSpace(part)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
