package prices

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func price(d int, close float64) models.DailyPrice {
	return models.DailyPrice{
		Symbol:     "TIPSMUSIC",
		Date:       day(d),
		Open:       decimal.NewFromFloat(close - 1),
		High:       decimal.NewFromFloat(close + 2),
		Low:        decimal.NewFromFloat(close - 3),
		Close:      decimal.NewFromFloat(close),
		Volume:     100000,
		DataSource: models.SourceNSEIndia,
	}
}

func TestNormalize(t *testing.T) {
	t.Run("keeps only rows with a positive close", func(t *testing.T) {
		records := []models.DailyPrice{
			price(12, 610.5),
			price(13, 0),
			price(14, 615.25),
			{Symbol: "TIPSMUSIC", Date: day(15)},
			price(16, -1),
			price(19, 620),
			{Symbol: "TIPSMUSIC", Close: decimal.NewFromInt(600)},
		}

		out := Normalize(records)

		require.Len(t, out, 3)
		assert.Equal(t, "2026-01-12", out[0].DateString())
		assert.Equal(t, "2026-01-14", out[1].DateString())
		assert.Equal(t, "2026-01-19", out[2].DateString())
	})

	t.Run("deduplicates dates keeping the latest occurrence", func(t *testing.T) {
		records := []models.DailyPrice{
			price(12, 610),
			price(13, 612),
			price(12, 611),
			price(12, 613.75),
		}

		out := Normalize(records)

		require.Len(t, out, 2)
		assert.Equal(t, "2026-01-12", out[0].DateString())
		assert.True(t, decimal.NewFromFloat(613.75).Equal(out[0].Close))
		assert.Equal(t, "2026-01-13", out[1].DateString())
	})

	t.Run("duplicates collapse regardless of time of day", func(t *testing.T) {
		first := price(12, 610)
		second := price(12, 615)
		second.Date = time.Date(2026, 1, 12, 9, 15, 0, 0, time.UTC)

		out := Normalize([]models.DailyPrice{first, second})

		require.Len(t, out, 1)
		assert.True(t, decimal.NewFromInt(615).Equal(out[0].Close))
		assert.Equal(t, day(12), out[0].Date)
	})

	t.Run("sorts ascending by date", func(t *testing.T) {
		records := []models.DailyPrice{price(19, 620), price(12, 610), price(16, 615)}

		out := Normalize(records)

		require.Len(t, out, 3)
		assert.Equal(t, []string{"2026-01-12", "2026-01-16", "2026-01-19"},
			[]string{out[0].DateString(), out[1].DateString(), out[2].DateString()})
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Normalize(nil))
	})
}

func TestBatch(t *testing.T) {
	records := make([]models.DailyPrice, 0, 250)
	for i := 0; i < 250; i++ {
		p := price(1, float64(100+i))
		p.Date = day(1).AddDate(0, 0, i)
		records = append(records, p)
	}

	t.Run("splits into batches of the configured size preserving order", func(t *testing.T) {
		batches := Batch(records, 100)

		require.Len(t, batches, 3)
		assert.Len(t, batches[0], 100)
		assert.Len(t, batches[1], 100)
		assert.Len(t, batches[2], 50)

		var flat []models.DailyPrice
		for _, b := range batches {
			flat = append(flat, b...)
		}
		assert.Equal(t, records, flat)
	})

	t.Run("exact multiple", func(t *testing.T) {
		batches := Batch(records[:200], 50)
		require.Len(t, batches, 4)
		for _, b := range batches {
			assert.Len(t, b, 50)
		}
	})

	t.Run("smaller than batch size", func(t *testing.T) {
		batches := Batch(records[:7], 100)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 7)
	})

	t.Run("non-positive size yields one batch", func(t *testing.T) {
		batches := Batch(records, 0)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 250)
	})

	t.Run("empty input yields no batches", func(t *testing.T) {
		assert.Empty(t, Batch(nil, 100))
	})

	t.Run("appending to a batch does not clobber the next", func(t *testing.T) {
		batches := Batch(records[:4], 2)
		_ = append(batches[0], price(28, 1))
		assert.True(t, records[2].Close.Equal(batches[1][0].Close))
	})
}

func TestDateRange(t *testing.T) {
	now := time.Date(2026, 1, 20, 18, 30, 0, 0, time.UTC)

	t.Run("trailing window", func(t *testing.T) {
		from, to := DateRange(now, 10, time.Time{})
		assert.Equal(t, time.Date(2026, 1, 10, 18, 30, 0, 0, time.UTC), from)
		assert.Equal(t, now, to)
	})

	t.Run("backfill override", func(t *testing.T) {
		from, to := DateRange(now, 10, day(9))
		assert.Equal(t, day(9), from)
		assert.Equal(t, now, to)
	})
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)))  // Saturday
	assert.True(t, IsWeekend(time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)))  // Sunday
	assert.False(t, IsWeekend(time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC))) // Monday
	assert.False(t, IsWeekend(time.Date(2026, 1, 16, 12, 0, 0, 0, time.UTC))) // Friday
}

func TestLatest(t *testing.T) {
	assert.Nil(t, Latest(nil))

	latest := Latest([]models.DailyPrice{price(14, 1), price(19, 2), price(16, 3)})
	require.NotNil(t, latest)
	assert.Equal(t, "2026-01-19", latest.DateString())
}
