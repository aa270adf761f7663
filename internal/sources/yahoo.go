package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

// Yahoo fetches daily candles from the Yahoo Finance chart API
type Yahoo struct {
	BaseURL string
	Symbol  string
	// Exchange suffix appended to the ticker, ".NS" for NSE listings
	Suffix string

	client *http.Client
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []yahooQuote `json:"quote"`
	} `json:"indicators"`
}

// Yahoo sends null for bars without trades
type yahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// NewYahoo creates a Yahoo Finance source for an NSE-listed symbol
func NewYahoo(symbol string, timeout time.Duration) *Yahoo {
	return &Yahoo{
		BaseURL: "https://query1.finance.yahoo.com",
		Symbol:  symbol,
		Suffix:  ".NS",
		client:  newHTTPClient(timeout),
	}
}

// Name returns the source tag
func (y *Yahoo) Name() string {
	return models.SourceYahooFinance
}

// Fetch returns one record per bar with a close. Missing open/high/low fall
// back to the close, a missing volume to zero.
func (y *Yahoo) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.Unix(), 10))
	q.Set("interval", "1d")
	chartURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.BaseURL, url.PathEscape(y.Symbol+y.Suffix), q.Encode())

	body, err := getBody(ctx, y.client, y.Name(), chartURL, nil)
	if err != nil {
		return nil, err
	}

	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse Yahoo response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: %w", ErrNoData)
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	records := make([]models.DailyPrice, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(quote.Close, i)
		if closePrice == nil || *closePrice == 0 {
			continue
		}
		c := decimal.NewFromFloat(*closePrice)

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		records = append(records, models.DailyPrice{
			Symbol:     y.Symbol,
			Date:       models.TradeDate(time.Unix(ts, 0).UTC()),
			Open:       orClose(at(quote.Open, i), c),
			High:       orClose(at(quote.High, i), c),
			Low:        orClose(at(quote.Low, i), c),
			Close:      c,
			Volume:     volume,
			DataSource: y.Name(),
		})
	}
	return records, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func orClose(v *float64, closePrice decimal.Decimal) decimal.Decimal {
	if v == nil || *v == 0 {
		return closePrice
	}
	return decimal.NewFromFloat(*v)
}
