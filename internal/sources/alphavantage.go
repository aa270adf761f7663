package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

// AlphaVantage fetches the latest session through the GLOBAL_QUOTE endpoint.
// It only ever yields a single record, dated by the provider's latest
// trading day.
type AlphaVantage struct {
	BaseURL string
	Symbol  string
	// Exchange suffix, ".BSE" for Bombay listings
	Suffix string
	APIKey string

	client *http.Client
}

type alphaVantageQuote struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// NewAlphaVantage creates an Alpha Vantage source
func NewAlphaVantage(symbol, apiKey string, timeout time.Duration) *AlphaVantage {
	return &AlphaVantage{
		BaseURL: "https://www.alphavantage.co",
		Symbol:  symbol,
		Suffix:  ".BSE",
		APIKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

// Name returns the source tag
func (a *AlphaVantage) Name() string {
	return models.SourceAlphaVantage
}

// Fetch ignores the window; GLOBAL_QUOTE has no history
func (a *AlphaVantage) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	if a.APIKey == "" {
		return nil, fmt.Errorf("alpha vantage: %w", ErrMissingAPIKey)
	}

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", a.Symbol+a.Suffix)
	q.Set("apikey", a.APIKey)

	body, err := getBody(ctx, a.client, a.Name(), a.BaseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp alphaVantageQuote
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Alpha Vantage response: %w", err)
	}

	quote := resp.GlobalQuote
	if quote.Price == "" {
		if msg := resp.Note + resp.Information; msg != "" {
			return nil, fmt.Errorf("alpha vantage: %w: %s", ErrNoData, msg)
		}
		return nil, fmt.Errorf("alpha vantage: %w", ErrNoData)
	}

	date := models.TradeDate(to)
	if quote.LatestTradingDay != "" {
		if date, err = models.ParseTradeDate(quote.LatestTradingDay); err != nil {
			return nil, fmt.Errorf("alpha vantage: invalid trading day %q: %w", quote.LatestTradingDay, err)
		}
	}

	closePrice, err := decimal.NewFromString(quote.Price)
	if err != nil {
		return nil, fmt.Errorf("alpha vantage: invalid price %q: %w", quote.Price, err)
	}

	return []models.DailyPrice{{
		Symbol:     a.Symbol,
		Date:       date,
		Open:       parseDecimal(quote.Open),
		High:       parseDecimal(quote.High),
		Low:        parseDecimal(quote.Low),
		Close:      closePrice,
		Volume:     parseDecimal(quote.Volume).IntPart(),
		DataSource: a.Name(),
	}}, nil
}

// parseDecimal returns zero for empty or malformed input
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
