// Package prices turns raw upstream rows into the records written to the
// datastore.
package prices

import (
	"sort"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/models"
)

// Normalize drops records without a positive close or a date, collapses
// duplicate (symbol, date) keys keeping the last occurrence, and returns the
// survivors ordered by date ascending.
func Normalize(records []models.DailyPrice) []models.DailyPrice {
	index := make(map[string]int, len(records))
	out := make([]models.DailyPrice, 0, len(records))

	for _, r := range records {
		if !r.Valid() {
			continue
		}
		r.Date = models.TradeDate(r.Date)

		if i, ok := index[r.Key()]; ok {
			out[i] = r
			continue
		}
		index[r.Key()] = len(out)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Batch splits records into consecutive chunks of at most size records.
// A non-positive size yields a single batch.
func Batch(records []models.DailyPrice, size int) [][]models.DailyPrice {
	if len(records) == 0 {
		return nil
	}
	if size <= 0 || size >= len(records) {
		return [][]models.DailyPrice{records}
	}

	batches := make([][]models.DailyPrice, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end:end])
	}
	return batches
}

// DateRange returns the fetch window ending at now. When backfillStart is
// non-zero it replaces the trailing daysBack window.
func DateRange(now time.Time, daysBack int, backfillStart time.Time) (from, to time.Time) {
	to = now
	if !backfillStart.IsZero() {
		return backfillStart, to
	}
	return now.AddDate(0, 0, -daysBack), to
}

// IsWeekend reports whether t falls on Saturday or Sunday in its own location
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// Latest returns the record with the greatest date, or nil
func Latest(records []models.DailyPrice) *models.DailyPrice {
	var latest *models.DailyPrice
	for i := range records {
		if latest == nil || !records[i].Date.Before(latest.Date) {
			latest = &records[i]
		}
	}
	return latest
}
