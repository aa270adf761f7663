// Package updater runs one fetch -> normalize -> upsert -> verify pass for
// the tracked symbol.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/prices"
)

var (
	// ErrNothingFetched means every source failed or returned no valid rows
	ErrNothingFetched = errors.New("no price records fetched")
	// ErrNothingWritten means records were fetched but the sink accepted none
	ErrNothingWritten = errors.New("no price records written")
)

// Error types recorded through Sink.LogError
const (
	ErrorTypeFetch  = "fetch_failed"
	ErrorTypeUpsert = "upsert_failed"
)

// Fetcher returns the first non-empty answer from a list of sources
type Fetcher interface {
	FetchFirst(ctx context.Context, from, to time.Time) (string, []models.DailyPrice, error)
}

// Sink is the datastore records are written to
type Sink interface {
	UpsertPrices(ctx context.Context, records []models.DailyPrice) (int, error)
	LatestPrice(ctx context.Context, symbol string) (*models.DailyPrice, error)
	LogError(ctx context.Context, errorType string, cause error)
}

// Publisher announces run outcomes
type Publisher interface {
	PublishPricesUpdated(ctx context.Context, result models.RunResult) error
	PublishUpdateFailed(ctx context.Context, result models.RunResult, cause error) error
}

// Cache stores the latest record and run summary
type Cache interface {
	SetLatest(ctx context.Context, p models.DailyPrice) error
	SetLastRun(ctx context.Context, r models.RunResult) error
}

// Options configures an Updater
type Options struct {
	Symbol        string
	DaysBack      int
	BackfillStart time.Time
	Verify        bool
	Location      *time.Location
}

// Updater ties a source chain to a sink
type Updater struct {
	fetcher   Fetcher
	sink      Sink
	publisher Publisher
	cache     Cache
	opts      Options
	now       func() time.Time
}

// New creates an Updater. A nil Location means UTC.
func New(fetcher Fetcher, sink Sink, opts Options) *Updater {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Updater{
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		now:     time.Now,
	}
}

// SetPublisher enables run events
func (u *Updater) SetPublisher(p Publisher) {
	u.publisher = p
}

// SetCache enables the latest snapshot cache
func (u *Updater) SetCache(c Cache) {
	u.cache = c
}

// SetClock replaces the time source
func (u *Updater) SetClock(now func() time.Time) {
	u.now = now
}

// Symbol returns the tracked symbol
func (u *Updater) Symbol() string {
	return u.opts.Symbol
}

// Now returns the current time in the market timezone
func (u *Updater) Now() time.Time {
	return u.now().In(u.opts.Location)
}

// MarketClosed reports whether today is a weekend in the market timezone
func (u *Updater) MarketClosed() bool {
	return prices.IsWeekend(u.Now())
}

// Daily runs over the trailing DaysBack window. BackfillStart is ignored.
func (u *Updater) Daily(ctx context.Context) (models.RunResult, error) {
	from, to := prices.DateRange(u.Now(), u.opts.DaysBack, time.Time{})
	return u.Run(ctx, from, to)
}

// Scheduled runs from BackfillStart when one is configured, otherwise over
// the trailing window
func (u *Updater) Scheduled(ctx context.Context) (models.RunResult, error) {
	from, to := prices.DateRange(u.Now(), u.opts.DaysBack, u.opts.BackfillStart)
	return u.Run(ctx, from, to)
}

// Backfill runs over an explicit range
func (u *Updater) Backfill(ctx context.Context, from, to time.Time) (models.RunResult, error) {
	return u.Run(ctx, from, to)
}

// Run fetches [from, to], normalizes the rows and upserts them into the sink.
// Failures are logged and reported through the returned error; the result
// always carries the counts reached.
func (u *Updater) Run(ctx context.Context, from, to time.Time) (models.RunResult, error) {
	now := u.Now()
	result := models.RunResult{
		RunID:     uuid.NewString(),
		Symbol:    u.opts.Symbol,
		From:      models.TradeDate(from),
		To:        models.TradeDate(to),
		Weekend:   prices.IsWeekend(now),
		StartedAt: now,
	}

	log.Printf("[%s] Fetching %s from %s to %s", result.RunID, result.Symbol,
		result.From.Format(models.DateLayout), result.To.Format(models.DateLayout))

	source, raw, err := u.fetcher.FetchFirst(ctx, from, to)
	if err != nil {
		cause := fmt.Errorf("%w: %w", ErrNothingFetched, err)
		return u.fail(ctx, result, ErrorTypeFetch, cause)
	}
	result.Source = source

	records := prices.Normalize(raw)
	result.Records = records
	result.Fetched = len(records)
	if dropped := len(raw) - len(records); dropped > 0 {
		log.Printf("[%s] Dropped %d invalid or duplicate rows", result.RunID, dropped)
	}
	if result.Fetched == 0 {
		return u.fail(ctx, result, ErrorTypeFetch, fmt.Errorf("%w from %s", ErrNothingFetched, source))
	}
	log.Printf("[%s] Fetched %d records from %s", result.RunID, result.Fetched, source)

	written, err := u.sink.UpsertPrices(ctx, records)
	result.Written = written
	result.Failed = result.Fetched - written
	if err != nil {
		log.Printf("[%s] Upsert stopped early: %v", result.RunID, err)
	}
	if written == 0 {
		cause := ErrNothingWritten
		if err != nil {
			cause = fmt.Errorf("%w: %w", ErrNothingWritten, err)
		}
		return u.fail(ctx, result, ErrorTypeUpsert, cause)
	}

	result.Latest = prices.Latest(records)
	if u.opts.Verify {
		result.Latest = u.verify(ctx, result)
	}

	result.EndedAt = u.Now()
	u.record(ctx, result)
	if u.publisher != nil {
		if err := u.publisher.PublishPricesUpdated(ctx, result); err != nil {
			log.Printf("[%s] Failed to publish update event: %v", result.RunID, err)
		}
	}

	log.Printf("[%s] Wrote %d/%d records for %s", result.RunID, result.Written, result.Fetched, result.Symbol)
	return result, err
}

// verify reads the newest row back from the sink. The written batch's own
// latest record is kept when the read fails or finds nothing.
func (u *Updater) verify(ctx context.Context, result models.RunResult) *models.DailyPrice {
	latest, err := u.sink.LatestPrice(ctx, result.Symbol)
	if err != nil {
		log.Printf("[%s] Verification failed: %v", result.RunID, err)
		return result.Latest
	}
	if latest == nil {
		log.Printf("[%s] Verification found no rows for %s", result.RunID, result.Symbol)
		return result.Latest
	}
	log.Printf("[%s] Verified latest %s: %s close=%s volume=%d", result.RunID, latest.Symbol,
		latest.DateString(), latest.Close.StringFixed(2), latest.Volume)
	return latest
}

func (u *Updater) fail(ctx context.Context, result models.RunResult, errorType string, cause error) (models.RunResult, error) {
	result.EndedAt = u.Now()
	log.Printf("[%s] Update failed: %v", result.RunID, cause)

	u.sink.LogError(ctx, errorType, cause)
	u.record(ctx, result)
	if u.publisher != nil {
		if err := u.publisher.PublishUpdateFailed(ctx, result, cause); err != nil {
			log.Printf("[%s] Failed to publish failure event: %v", result.RunID, err)
		}
	}
	return result, cause
}

func (u *Updater) record(ctx context.Context, result models.RunResult) {
	if u.cache == nil {
		return
	}
	if result.Latest != nil {
		if err := u.cache.SetLatest(ctx, *result.Latest); err != nil {
			log.Printf("[%s] Failed to cache latest price: %v", result.RunID, err)
		}
	}
	if err := u.cache.SetLastRun(ctx, result); err != nil {
		log.Printf("[%s] Failed to cache run: %v", result.RunID, err)
	}
}

// ExitCode maps a run outcome to the process exit status. Any written record
// is success. Records fetched but not written is failure. When nothing was
// fetched the run fails on weekdays only, since markets are closed on
// weekends. Any other error, such as bad configuration, is failure.
func ExitCode(result models.RunResult, err error) int {
	switch {
	case result.Written > 0:
		return 0
	case result.Fetched > 0:
		return 1
	case err != nil && !errors.Is(err, ErrNothingFetched):
		return 1
	case result.Weekend:
		return 0
	default:
		return 1
	}
}
