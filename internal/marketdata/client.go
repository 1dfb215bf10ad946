package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://financialmodelingprep.com/stable"

// profileBatchSize caps how many symbols go into one batched request.
const profileBatchSize = 50

// Source supplies ordered bar series and company metadata per symbol.
type Source interface {
	DailyBars(ctx context.Context, symbol string) ([]Bar, error)
	FourHourBars(ctx context.Context, symbol string) ([]Bar, error)
	CompanyProfiles(ctx context.Context, symbols []string) (map[string]CompanyProfile, error)
}

// CompanyProfile is the company metadata payload for one symbol,
// merged from the profile and ratios endpoints. Pointer fields are nil
// when the provider omits the value.
type CompanyProfile struct {
	Symbol        string
	Name          string
	Exchange      *string
	Sector        *string
	Industry      *string
	MarketCap     *float64
	PERatio       *float64
	DividendYield *float64
	Description   *string
	Website       *string
	Logo          *string
}

// Client is a Financial Modeling Prep REST client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     zerolog.Logger
}

// NewClient creates a new FMP client. An empty baseURL selects the
// production endpoint.
func NewClient(apiKey, baseURL string, requestsPerMinute int, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    NewRateLimiter(requestsPerMinute, time.Minute),
		logger:     logger.With().Str("component", "marketdata").Logger(),
	}
}

// eodRow is one row of the dividend-adjusted daily EOD payload.
type eodRow struct {
	Date     string   `json:"date"`
	AdjOpen  *float64 `json:"adjOpen"`
	AdjHigh  *float64 `json:"adjHigh"`
	AdjLow   *float64 `json:"adjLow"`
	AdjClose *float64 `json:"adjClose"`
	Volume   *float64 `json:"volume"`
}

// intradayRow is one row of the historical-chart payload.
type intradayRow struct {
	Date   string   `json:"date"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// DailyBars fetches the full dividend-adjusted daily EOD history for a
// symbol, mapping adjusted prices into the canonical OHLC fields. Bars are
// returned oldest first, stamped at end of day.
func (c *Client) DailyBars(ctx context.Context, symbol string) ([]Bar, error) {
	var rows []eodRow
	if err := c.get(ctx, "/historical-price-eod/dividend-adjusted", symbol, &rows); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		if row.Date == "" || row.AdjOpen == nil || row.AdjHigh == nil ||
			row.AdjLow == nil || row.AdjClose == nil || row.Volume == nil {
			// Skip malformed rows
			continue
		}
		day, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{
			Date:   day.Add(23*time.Hour + 59*time.Minute + 59*time.Second),
			Open:   *row.AdjOpen,
			High:   *row.AdjHigh,
			Low:    *row.AdjLow,
			Close:  *row.AdjClose,
			Volume: *row.Volume,
		})
	}

	sortBars(bars)
	return bars, nil
}

// FourHourBars fetches the full 4-hour history for a symbol, oldest first.
func (c *Client) FourHourBars(ctx context.Context, symbol string) ([]Bar, error) {
	var rows []intradayRow
	if err := c.get(ctx, "/historical-chart/4hour", symbol, &rows); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		if row.Date == "" || row.Open == nil || row.High == nil ||
			row.Low == nil || row.Close == nil || row.Volume == nil {
			continue
		}
		ts, err := time.Parse("2006-01-02 15:04:05", row.Date)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{
			Date:   ts,
			Open:   *row.Open,
			High:   *row.High,
			Low:    *row.Low,
			Close:  *row.Close,
			Volume: *row.Volume,
		})
	}

	sortBars(bars)
	return bars, nil
}

// profileRow is one row of the company profile payload.
type profileRow struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	Exchange    *string  `json:"exchange"`
	Sector      *string  `json:"sector"`
	Industry    *string  `json:"industry"`
	MarketCap   *float64 `json:"marketCap"`
	Description *string  `json:"description"`
	Website     *string  `json:"website"`
	Image       *string  `json:"image"`
}

// ratioRow is one row of the financial ratios payload. The endpoint may
// return several periods per symbol; the first row is the most recent.
type ratioRow struct {
	Symbol        string   `json:"symbol"`
	PERatio       *float64 `json:"priceToEarningsRatio"`
	DividendYield *float64 `json:"dividendYield"`
}

// CompanyProfiles fetches company metadata for a set of symbols using
// batched requests, merging profile fields with the headline ratios.
// Symbols the provider does not know are absent from the result.
func (c *Client) CompanyProfiles(ctx context.Context, symbols []string) (map[string]CompanyProfile, error) {
	profiles := make(map[string]CompanyProfile, len(symbols))

	for start := 0; start < len(symbols); start += profileBatchSize {
		end := start + profileBatchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := strings.Join(symbols[start:end], ",")

		var rows []profileRow
		if err := c.get(ctx, "/profile", batch, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			symbol := strings.ToUpper(row.Symbol)
			if symbol == "" || row.CompanyName == "" {
				continue
			}
			profiles[symbol] = CompanyProfile{
				Symbol:      symbol,
				Name:        row.CompanyName,
				Exchange:    row.Exchange,
				Sector:      row.Sector,
				Industry:    row.Industry,
				MarketCap:   row.MarketCap,
				Description: row.Description,
				Website:     row.Website,
				Logo:        row.Image,
			}
		}

		var ratios []ratioRow
		if err := c.get(ctx, "/ratios", batch, &ratios); err != nil {
			return nil, err
		}
		for _, row := range ratios {
			symbol := strings.ToUpper(row.Symbol)
			profile, ok := profiles[symbol]
			if !ok || profile.PERatio != nil {
				continue
			}
			profile.PERatio = row.PERatio
			profile.DividendYield = row.DividendYield
			profiles[symbol] = profile
		}
	}

	c.logger.Debug().
		Int("requested", len(symbols)).
		Int("resolved", len(profiles)).
		Msg("fetched company profiles")
	return profiles, nil
}

func (c *Client) get(ctx context.Context, path, symbol string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching %s for %s: %w", path, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FMP API error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing %s response: %w", path, err)
	}

	c.logger.Debug().
		Str("symbol", symbol).
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("fetched market data")
	return nil
}

func sortBars(bars []Bar) {
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})
}
