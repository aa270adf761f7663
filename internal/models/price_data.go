package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of a trade date
const DateLayout = "2006-01-02"

// Data source tags stored in the data_source column
const (
	SourceNSEIndia     = "nse_india"
	SourceYahooFinance = "yahoo_finance"
	SourceTiingo       = "tiingo"
	SourceAlphaVantage = "alpha_vantage"
	SourceTwelveData   = "twelve_data"
	SourceWebScrape    = "web_scrape"
)

// DailyPrice represents one day of OHLCV price data for a stock.
// (Symbol, Date) is the uniqueness key in the datastore.
type DailyPrice struct {
	Symbol     string          `json:"symbol"`
	Date       time.Time       `json:"date"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     int64           `json:"volume"`
	DataSource string          `json:"data_source"`
}

// TradeDate truncates t to a calendar date at midnight UTC, keeping the
// year/month/day as seen in t's own location.
func TradeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseTradeDate parses a YYYY-MM-DD date
func ParseTradeDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateString returns the trade date as YYYY-MM-DD
func (p DailyPrice) DateString() string {
	return p.Date.Format(DateLayout)
}

// Key returns the uniqueness key of the record
func (p DailyPrice) Key() string {
	return p.Symbol + "|" + p.DateString()
}

// Valid reports whether the record carries a usable close price and date
func (p DailyPrice) Valid() bool {
	return !p.Date.IsZero() && p.Close.IsPositive()
}
