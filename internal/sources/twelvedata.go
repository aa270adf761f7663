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

// TwelveData fetches the latest session from the Twelve Data quote endpoint
type TwelveData struct {
	BaseURL  string
	Symbol   string
	Exchange string
	APIKey   string

	client *http.Client
}

type twelveDataQuote struct {
	Symbol   string `json:"symbol"`
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

// NewTwelveData creates a Twelve Data source for an NSE listing
func NewTwelveData(symbol, apiKey string, timeout time.Duration) *TwelveData {
	return &TwelveData{
		BaseURL:  "https://api.twelvedata.com",
		Symbol:   symbol,
		Exchange: "NSE",
		APIKey:   apiKey,
		client:   newHTTPClient(timeout),
	}
}

// Name returns the source tag
func (t *TwelveData) Name() string {
	return models.SourceTwelveData
}

// Fetch ignores the window and returns the latest quote
func (t *TwelveData) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	if t.APIKey == "" {
		return nil, fmt.Errorf("twelve data: %w", ErrMissingAPIKey)
	}

	q := url.Values{}
	q.Set("symbol", t.Symbol)
	q.Set("exchange", t.Exchange)
	q.Set("apikey", t.APIKey)

	body, err := getBody(ctx, t.client, t.Name(), t.BaseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var quote twelveDataQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("failed to parse Twelve Data response: %w", err)
	}
	if quote.Status == "error" {
		return nil, fmt.Errorf("twelve data: %s", quote.Message)
	}
	if quote.Close == "" {
		return nil, fmt.Errorf("twelve data: %w", ErrNoData)
	}

	date := models.TradeDate(to)
	if len(quote.Datetime) >= len(models.DateLayout) {
		if parsed, err := models.ParseTradeDate(quote.Datetime[:len(models.DateLayout)]); err == nil {
			date = parsed
		}
	}

	closePrice, err := decimal.NewFromString(quote.Close)
	if err != nil {
		return nil, fmt.Errorf("twelve data: invalid close %q: %w", quote.Close, err)
	}

	return []models.DailyPrice{{
		Symbol:     t.Symbol,
		Date:       date,
		Open:       parseDecimal(quote.Open),
		High:       parseDecimal(quote.High),
		Low:        parseDecimal(quote.Low),
		Close:      closePrice,
		Volume:     parseDecimal(quote.Volume).IntPart(),
		DataSource: t.Name(),
	}}, nil
}
