package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/supabase"
)

func restConfig() *config.Config {
	return &config.Config{
		Sink: config.SinkREST,
		Stock: config.StockConfig{
			Symbol:         "TIPSMUSIC",
			DaysBack:       10,
			BackfillStart:  "2026-01-09",
			MarketTimezone: "Asia/Kolkata",
		},
		Sources: config.SourcesConfig{
			Order:   []string{"nse", "yahoo", "alphavantage"},
			Timeout: time.Second,
		},
		Supabase: config.SupabaseConfig{
			URL:        "https://example.supabase.co",
			ServiceKey: "service-key",
			Table:      "stock_prices",
			BatchSize:  100,
		},
	}
}

func TestNew(t *testing.T) {
	t.Run("rest sink without optional components", func(t *testing.T) {
		a, err := New(context.Background(), restConfig())
		require.NoError(t, err)
		defer a.Close()

		require.NotNil(t, a.Updater)
		assert.IsType(t, &supabase.Client{}, a.Sink)
		assert.Nil(t, a.Cache)
		assert.Nil(t, a.Producer)
		assert.Equal(t, "TIPSMUSIC", a.Updater.Symbol())
	})

	t.Run("kafka brokers enable the producer", func(t *testing.T) {
		cfg := restConfig()
		cfg.Kafka = config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "stock-prices"}

		a, err := New(context.Background(), cfg)
		require.NoError(t, err)
		defer a.Close()

		assert.NotNil(t, a.Producer)
	})

	t.Run("unknown source", func(t *testing.T) {
		cfg := restConfig()
		cfg.Sources.Order = []string{"bloomberg"}

		_, err := New(context.Background(), cfg)
		assert.ErrorContains(t, err, `unknown source "bloomberg"`)
	})

	t.Run("unknown sink", func(t *testing.T) {
		cfg := restConfig()
		cfg.Sink = "csv"

		_, err := New(context.Background(), cfg)
		assert.ErrorContains(t, err, `unknown sink "csv"`)
	})
}
