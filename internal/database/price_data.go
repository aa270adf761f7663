package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/prices"
)

const upsertPriceQuery = `
	INSERT INTO stock_prices (symbol, date, open, high, low, close, volume, data_source, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (symbol, date) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		data_source = EXCLUDED.data_source,
		updated_at = EXCLUDED.updated_at
`

const selectPriceColumns = `SELECT symbol, date, open, high, low, close, volume, data_source FROM stock_prices`

// UpsertPriceBatch inserts or overwrites records keyed by (symbol, date)
// inside one transaction
func (db *DB) UpsertPriceBatch(ctx context.Context, batch []models.DailyPrice) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPriceQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range batch {
		_, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, p.DataSource, now)
		if err != nil {
			return fmt.Errorf("failed to upsert price data for %s on %s: %w", p.Symbol, p.DateString(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertPrices writes records in batches of batchSize, one transaction per
// batch. A failed batch is logged and skipped.
func (db *DB) UpsertPrices(ctx context.Context, records []models.DailyPrice, batchSize int) (int, error) {
	written := 0
	for i, batch := range prices.Batch(records, batchSize) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if err := db.UpsertPriceBatch(ctx, batch); err != nil {
			log.Printf("Batch %d failed: %v", i+1, err)
			continue
		}
		written += len(batch)
		log.Printf("Batch %d: %d records updated", i+1, len(batch))
	}
	return written, nil
}

// GetLatestPriceData retrieves the most recent price data for a symbol.
// It returns nil without error when there is none.
func (db *DB) GetLatestPriceData(ctx context.Context, symbol string) (*models.DailyPrice, error) {
	query := selectPriceColumns + `
		WHERE symbol = $1
		ORDER BY date DESC
		LIMIT 1
	`
	p, err := scanPrice(db.conn.QueryRowContext(ctx, query, symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price data: %w", err)
	}
	return p, nil
}

// GetPriceDataRange retrieves price data for a symbol within a date range,
// ordered by date ascending
func (db *DB) GetPriceDataRange(ctx context.Context, symbol string, startDate, endDate time.Time) ([]models.DailyPrice, error) {
	query := selectPriceColumns + `
		WHERE symbol = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to get price data range: %w", err)
	}
	defer rows.Close()

	var out []models.DailyPrice
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price data: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountPriceData returns the number of stored days for a symbol
func (db *DB) CountPriceData(ctx context.Context, symbol string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM stock_prices WHERE symbol = $1`, symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count price data: %w", err)
	}
	return n, nil
}

// LogError records a failed run in error_logs. Failures are only logged locally.
func (db *DB) LogError(ctx context.Context, errorType string, cause error) {
	if cause == nil {
		return
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO error_logs (error_type, error_message, created_at) VALUES ($1, $2, $3)`,
		errorType, cause.Error(), time.Now(),
	)
	if err != nil {
		log.Printf("Failed to log error: %v", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrice(row rowScanner) (*models.DailyPrice, error) {
	var p models.DailyPrice
	var source sql.NullString

	if err := row.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume, &source); err != nil {
		return nil, err
	}
	p.Date = models.TradeDate(p.Date)
	p.DataSource = source.String
	return &p, nil
}

// PriceStore adapts DB to the updater's sink with a fixed batch size
type PriceStore struct {
	DB        *DB
	BatchSize int
}

// UpsertPrices writes records in batches
func (s *PriceStore) UpsertPrices(ctx context.Context, records []models.DailyPrice) (int, error) {
	return s.DB.UpsertPrices(ctx, records, s.BatchSize)
}

// LatestPrice returns the newest stored record for symbol
func (s *PriceStore) LatestPrice(ctx context.Context, symbol string) (*models.DailyPrice, error) {
	return s.DB.GetLatestPriceData(ctx, symbol)
}

// LogError records a failed run
func (s *PriceStore) LogError(ctx context.Context, errorType string, cause error) {
	s.DB.LogError(ctx, errorType, cause)
}
