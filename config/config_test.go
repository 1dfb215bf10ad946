package config

import (
	"reflect"
	"testing"
)

func TestDefaultSymbolUniverse(t *testing.T) {
	t.Setenv("ANALYTICS_SYMBOLS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.AnalyticsConfig.Symbols) != 20 {
		t.Fatalf("default symbols = %d, want 20", len(cfg.AnalyticsConfig.Symbols))
	}
	if cfg.AnalyticsConfig.Symbols[0] != "AAPL" || cfg.AnalyticsConfig.Symbols[19] != "CRM" {
		t.Errorf("unexpected default universe: %v", cfg.AnalyticsConfig.Symbols)
	}
}

func TestSymbolsEnvOverride(t *testing.T) {
	t.Setenv("ANALYTICS_SYMBOLS", "ibm, orcl ,,intc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := []string{"IBM", "ORCL", "INTC"}
	if !reflect.DeepEqual(cfg.AnalyticsConfig.Symbols, want) {
		t.Errorf("symbols = %v, want %v", cfg.AnalyticsConfig.Symbols, want)
	}
}

func TestDefaultsApplied(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.MarketDataConfig.RequestsPerMinute != 300 {
		t.Errorf("RequestsPerMinute = %d, want 300", cfg.MarketDataConfig.RequestsPerMinute)
	}
	if cfg.AnalyticsConfig.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.AnalyticsConfig.Workers)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.ServerConfig.Port)
	}
	if cfg.SchedulerConfig.DailySpec == "" || cfg.SchedulerConfig.FourHourSpec == "" {
		t.Error("expected default cron specs")
	}
}
