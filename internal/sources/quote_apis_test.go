package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	quote "github.com/markcheno/go-quote"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

var (
	windowFrom = time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2026, 1, 16, 18, 30, 0, 0, time.UTC)
)

func TestAlphaVantageFetch(t *testing.T) {
	t.Run("parses global quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
			assert.Equal(t, "TIPSMUSIC.BSE", r.URL.Query().Get("symbol"))
			assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
			w.Write([]byte(`{"Global Quote":{"01. symbol":"TIPSMUSIC.BSE","02. open":"612.0000","03. high":"620.0000","04. low":"608.0000","05. price":"618.3500","06. volume":"20451","07. latest trading day":"2026-01-16"}}`))
		}))
		defer srv.Close()

		av := NewAlphaVantage("TIPSMUSIC", "demo", 5*time.Second)
		av.BaseURL = srv.URL

		records, err := av.Fetch(context.Background(), windowFrom, windowTo)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "2026-01-16", records[0].DateString())
		assert.True(t, decimal.NewFromFloat(618.35).Equal(records[0].Close))
		assert.True(t, decimal.NewFromInt(612).Equal(records[0].Open))
		assert.Equal(t, int64(20451), records[0].Volume)
		assert.Equal(t, models.SourceAlphaVantage, records[0].DataSource)
	})

	t.Run("rate limit note is ErrNoData", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
		}))
		defer srv.Close()

		av := NewAlphaVantage("TIPSMUSIC", "demo", 5*time.Second)
		av.BaseURL = srv.URL

		_, err := av.Fetch(context.Background(), windowFrom, windowTo)
		require.ErrorIs(t, err, ErrNoData)
		assert.Contains(t, err.Error(), "call frequency")
	})

	t.Run("requires api key", func(t *testing.T) {
		_, err := NewAlphaVantage("TIPSMUSIC", "", time.Second).Fetch(context.Background(), windowFrom, windowTo)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}

func TestTwelveDataFetch(t *testing.T) {
	t.Run("parses quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, "NSE", r.URL.Query().Get("exchange"))
			w.Write([]byte(`{"symbol":"TIPSMUSIC","datetime":"2026-01-16","open":"612.5","high":"620","low":"608.1","close":"618.35","volume":"154233"}`))
		}))
		defer srv.Close()

		td := NewTwelveData("TIPSMUSIC", "key", 5*time.Second)
		td.BaseURL = srv.URL

		records, err := td.Fetch(context.Background(), windowFrom, windowTo)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "2026-01-16", records[0].DateString())
		assert.True(t, decimal.NewFromFloat(618.35).Equal(records[0].Close))
		assert.Equal(t, int64(154233), records[0].Volume)
		assert.Equal(t, models.SourceTwelveData, records[0].DataSource)
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"code":404,"message":"symbol not found","status":"error"}`))
		}))
		defer srv.Close()

		td := NewTwelveData("TIPSMUSIC", "key", 5*time.Second)
		td.BaseURL = srv.URL

		_, err := td.Fetch(context.Background(), windowFrom, windowTo)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symbol not found")
	})

	t.Run("requires api key", func(t *testing.T) {
		_, err := NewTwelveData("TIPSMUSIC", "", time.Second).Fetch(context.Background(), windowFrom, windowTo)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}

func TestTiingoFetch(t *testing.T) {
	t.Run("converts columnar quote", func(t *testing.T) {
		tiingo := NewTiingo("TIPSMUSIC", "token")
		tiingo.fetch = func(symbol, startDate, endDate string, period quote.Period, token string) (quote.Quote, error) {
			assert.Equal(t, "TIPSMUSIC", symbol)
			assert.Equal(t, "2026-01-06", startDate)
			assert.Equal(t, "2026-01-16", endDate)
			assert.Equal(t, quote.Daily, period)
			assert.Equal(t, "token", token)

			q := quote.NewQuote(symbol, 2)
			q.Date[0] = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
			q.Date[1] = time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)
			q.Close[0], q.Close[1] = 611.7, 618.35
			q.Open[1], q.High[1], q.Low[1] = 612.5, 620, 608.1
			q.Volume[1] = 154233
			return q, nil
		}

		records, err := tiingo.Fetch(context.Background(), windowFrom, windowTo)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "2026-01-16", records[1].DateString())
		assert.True(t, decimal.NewFromFloat(618.35).Equal(records[1].Close))
		assert.Equal(t, int64(154233), records[1].Volume)
		assert.Equal(t, models.SourceTiingo, records[1].DataSource)
	})

	t.Run("empty quote is ErrNoData", func(t *testing.T) {
		tiingo := NewTiingo("TIPSMUSIC", "token")
		tiingo.fetch = func(symbol, _, _ string, _ quote.Period, _ string) (quote.Quote, error) {
			return quote.NewQuote(symbol, 0), nil
		}

		_, err := tiingo.Fetch(context.Background(), windowFrom, windowTo)
		assert.ErrorIs(t, err, ErrNoData)
	})

	t.Run("library error is wrapped", func(t *testing.T) {
		tiingo := NewTiingo("TIPSMUSIC", "token")
		boom := errors.New("dial tcp: timeout")
		tiingo.fetch = func(string, string, string, quote.Period, string) (quote.Quote, error) {
			return quote.Quote{}, boom
		}

		_, err := tiingo.Fetch(context.Background(), windowFrom, windowTo)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("requires token", func(t *testing.T) {
		_, err := NewTiingo("TIPSMUSIC", "").Fetch(context.Background(), windowFrom, windowTo)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})
}
