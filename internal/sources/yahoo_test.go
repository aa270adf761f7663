package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

// 2026-01-14, 2026-01-15 (no trades), 2026-01-16 at 09:15 IST
const yahooFixture = `{"chart":{"result":[{
	"timestamp":[1768362300,1768448700,1768535100],
	"indicators":{"quote":[{
		"open":[601.0,null,null],
		"high":[610.5,null,622.0],
		"low":[598.0,null,611.0],
		"close":[607.25,null,619.9],
		"volume":[120000,null,null]
	}]}
}],"error":null}}`

func TestYahooFetch(t *testing.T) {
	from := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	t.Run("parses bars and skips null closes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v8/finance/chart/TIPSMUSIC.NS", r.URL.Path)
			assert.Equal(t, "1767916800", r.URL.Query().Get("period1"))
			assert.Equal(t, "1768608000", r.URL.Query().Get("period2"))
			assert.Equal(t, "1d", r.URL.Query().Get("interval"))
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
			w.Write([]byte(yahooFixture))
		}))
		defer srv.Close()

		y := NewYahoo("TIPSMUSIC", 5*time.Second)
		y.BaseURL = srv.URL

		records, err := y.Fetch(context.Background(), from, to)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "2026-01-14", records[0].DateString())
		assert.True(t, decimal.NewFromFloat(607.25).Equal(records[0].Close))
		assert.Equal(t, int64(120000), records[0].Volume)
		assert.Equal(t, models.SourceYahooFinance, records[0].DataSource)

		// Missing open falls back to close, missing volume to zero
		assert.Equal(t, "2026-01-16", records[1].DateString())
		assert.True(t, decimal.NewFromFloat(619.9).Equal(records[1].Open))
		assert.True(t, decimal.NewFromFloat(622).Equal(records[1].High))
		assert.Equal(t, int64(0), records[1].Volume)
	})

	t.Run("chart error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		}))
		defer srv.Close()

		y := NewYahoo("TIPSMUSIC", 5*time.Second)
		y.BaseURL = srv.URL

		_, err := y.Fetch(context.Background(), from, to)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symbol may be delisted")
	})

	t.Run("empty result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
		}))
		defer srv.Close()

		y := NewYahoo("TIPSMUSIC", 5*time.Second)
		y.BaseURL = srv.URL

		_, err := y.Fetch(context.Background(), from, to)
		assert.ErrorIs(t, err, ErrNoData)
	})
}
