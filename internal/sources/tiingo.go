package sources

import (
	"context"
	"fmt"
	"time"

	quote "github.com/markcheno/go-quote"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

type tiingoFetchFunc func(symbol, startDate, endDate string, period quote.Period, token string) (quote.Quote, error)

// Tiingo fetches adjusted daily bars through the go-quote library
type Tiingo struct {
	Symbol string
	Token  string

	fetch tiingoFetchFunc
}

// NewTiingo creates a Tiingo source
func NewTiingo(symbol, token string) *Tiingo {
	return &Tiingo{
		Symbol: symbol,
		Token:  token,
		fetch:  quote.NewQuoteFromTiingo,
	}
}

// Name returns the source tag
func (t *Tiingo) Name() string {
	return models.SourceTiingo
}

// Fetch returns the bars in [from, to]. go-quote does not take a context, so
// cancellation is only observed before the request starts.
func (t *Tiingo) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	if t.Token == "" {
		return nil, fmt.Errorf("tiingo: %w", ErrMissingAPIKey)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q, err := t.fetch(t.Symbol, from.Format(models.DateLayout), to.Format(models.DateLayout), quote.Daily, t.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from tiingo: %w", err)
	}
	if len(q.Date) == 0 {
		return nil, fmt.Errorf("tiingo: %w", ErrNoData)
	}
	return t.fromQuote(q), nil
}

func (t *Tiingo) fromQuote(q quote.Quote) []models.DailyPrice {
	records := make([]models.DailyPrice, 0, len(q.Date))
	for i := range q.Date {
		records = append(records, models.DailyPrice{
			Symbol:     t.Symbol,
			Date:       models.TradeDate(q.Date[i]),
			Open:       decimal.NewFromFloat(column(q.Open, i)),
			High:       decimal.NewFromFloat(column(q.High, i)),
			Low:        decimal.NewFromFloat(column(q.Low, i)),
			Close:      decimal.NewFromFloat(column(q.Close, i)),
			Volume:     int64(column(q.Volume, i)),
			DataSource: t.Name(),
		})
	}
	return records
}

func column(values []float64, i int) float64 {
	if i >= len(values) {
		return 0
	}
	return values[i]
}
