package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

const nseDateLayout = "02-Jan-2006"

// NSE fetches equity history from the National Stock Exchange of India's
// historical-data API. The API only answers sessions that carry the cookies
// set by the homepage, so every fetch primes the session first.
type NSE struct {
	BaseURL string
	Symbol  string
	Series  string
	// Pause between priming the session and calling the API
	Warmup time.Duration

	client *http.Client
}

type nseResponse struct {
	Data []nseRow `json:"data"`
}

type nseRow struct {
	Timestamp string          `json:"CH_TIMESTAMP"`
	Open      decimal.Decimal `json:"CH_OPENING_PRICE"`
	High      decimal.Decimal `json:"CH_TRADE_HIGH_PRICE"`
	Low       decimal.Decimal `json:"CH_TRADE_LOW_PRICE"`
	Close     decimal.Decimal `json:"CH_CLOSING_PRICE"`
	Volume    decimal.Decimal `json:"CH_TOT_TRADED_QTY"`
}

// NewNSE creates an NSE source for symbol
func NewNSE(symbol string, timeout time.Duration) *NSE {
	jar, _ := cookiejar.New(nil)
	client := newHTTPClient(timeout)
	client.Jar = jar

	return &NSE{
		BaseURL: "https://www.nseindia.com",
		Symbol:  symbol,
		Series:  "EQ",
		Warmup:  time.Second,
		client:  client,
	}
}

// Name returns the source tag
func (n *NSE) Name() string {
	return models.SourceNSEIndia
}

// Fetch returns the rows for [from, to] in the order NSE sends them
func (n *NSE) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	header := http.Header{
		"Accept":          {"application/json, text/plain, */*"},
		"Accept-Language": {"en-US,en;q=0.9"},
		"Referer":         {n.BaseURL + "/"},
	}

	log.Printf("Initializing NSE session...")
	if _, err := getBody(ctx, n.client, n.Name(), n.BaseURL+"/", header); err != nil {
		// The API call below reports the real failure if cookies are required
		log.Printf("NSE homepage request failed: %v", err)
	}

	if n.Warmup > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.Warmup):
		}
	}

	q := url.Values{}
	q.Set("symbol", n.Symbol)
	q.Set("series", fmt.Sprintf("[%q]", n.Series))
	q.Set("from", from.Format("02-01-2006"))
	q.Set("to", to.Format("02-01-2006"))
	apiURL := n.BaseURL + "/api/historical/cm/equity?" + q.Encode()

	log.Printf("Fetching NSE data from %s to %s...", q.Get("from"), q.Get("to"))
	body, err := getBody(ctx, n.client, n.Name(), apiURL, header)
	if err != nil {
		return nil, err
	}

	var resp nseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse NSE response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("nse: %w", ErrNoData)
	}

	records := make([]models.DailyPrice, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.Timestamp == "" {
			continue
		}
		date, err := time.Parse(nseDateLayout, row.Timestamp)
		if err != nil {
			log.Printf("Skipping NSE row with bad date %q: %v", row.Timestamp, err)
			continue
		}
		records = append(records, models.DailyPrice{
			Symbol:     n.Symbol,
			Date:       date,
			Open:       row.Open,
			High:       row.High,
			Low:        row.Low,
			Close:      row.Close,
			Volume:     row.Volume.IntPart(),
			DataSource: n.Name(),
		})
	}
	return records, nil
}
