package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-analytics-service/config"
	"stock-analytics-service/internal/analytics"
	"stock-analytics-service/internal/indicators"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/patterns"
)

type recordingStore struct {
	mu      sync.Mutex
	upserts int
}

func (r *recordingStore) LatestBarDate(_ context.Context, _ marketdata.Timeframe, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (r *recordingStore) UpsertStocks(_ context.Context, profiles []marketdata.CompanyProfile) (int, error) {
	return len(profiles), nil
}

func (r *recordingStore) UpsertBars(_ context.Context, _ marketdata.Timeframe, _ string, bars []marketdata.Bar) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts += len(bars)
	return len(bars), nil
}

func (r *recordingStore) UpdateMetrics(_ context.Context, _ marketdata.Timeframe, _ string, _ []marketdata.Bar, metrics []indicators.Metrics) (int, error) {
	return len(metrics), nil
}

func (r *recordingStore) InsertPatternEvents(_ context.Context, events []patterns.PatternEvent) (int, error) {
	return len(events), nil
}

type flatSource struct{}

func (flatSource) DailyBars(_ context.Context, _ string) ([]marketdata.Bar, error) {
	bars := make([]marketdata.Bar, 10)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Date: start.AddDate(0, 0, i),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	return bars, nil
}

func (flatSource) FourHourBars(ctx context.Context, symbol string) ([]marketdata.Bar, error) {
	return flatSource{}.DailyBars(ctx, symbol)
}

func (flatSource) CompanyProfiles(_ context.Context, _ []string) (map[string]marketdata.CompanyProfile, error) {
	return nil, nil
}

func newTestScheduler(store analytics.Store, cfg config.SchedulerConfig) *Scheduler {
	runner := analytics.NewRunner(flatSource{}, store, nil, nil, []string{"AAPL"}, 1, zerolog.Nop())
	return NewScheduler(context.Background(), runner, cfg, zerolog.Nop())
}

func TestRegisterAll(t *testing.T) {
	sched := newTestScheduler(&recordingStore{}, config.SchedulerConfig{
		DailySpec:    "0 22 * * 1-5",
		FourHourSpec: "0 */4 * * *",
	})

	if err := sched.RegisterAll(); err != nil {
		t.Fatalf("RegisterAll returned error: %v", err)
	}
}

func TestRegisterAllRejectsBadSpec(t *testing.T) {
	sched := newTestScheduler(&recordingStore{}, config.SchedulerConfig{
		DailySpec:    "not a cron spec",
		FourHourSpec: "0 */4 * * *",
	})

	if err := sched.RegisterAll(); err == nil {
		t.Error("expected an error for an invalid cron spec")
	}
}

func TestRunDailyNow(t *testing.T) {
	store := &recordingStore{}
	sched := newTestScheduler(store, config.SchedulerConfig{
		DailySpec:    "0 22 * * 1-5",
		FourHourSpec: "0 */4 * * *",
	})

	sched.RunDailyNow()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.upserts != 10 {
		t.Errorf("upserted %d bars, want 10", store.upserts)
	}
}
