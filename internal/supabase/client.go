// Package supabase writes price records through the datastore's PostgREST
// API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/prices"
)

// Client talks to the REST endpoint of a single table
type Client struct {
	baseURL    string
	serviceKey string
	table      string
	batchSize  int
	batchPause time.Duration
	http       *http.Client
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// priceRow is the JSON shape of a stock_prices row. Prices go out as JSON
// numbers; decimal.Decimal would quote them.
type priceRow struct {
	Symbol     string      `json:"symbol"`
	Date       string      `json:"date"`
	Open       json.Number `json:"open"`
	High       json.Number `json:"high"`
	Low        json.Number `json:"low"`
	Close      json.Number `json:"close"`
	Volume     int64       `json:"volume"`
	DataSource string      `json:"data_source"`
}

type errorLogRow struct {
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	ErrorDetails string    `json:"error_details,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewClient creates a REST client from configuration
func NewClient(cfg config.SupabaseConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		serviceKey: cfg.ServiceKey,
		table:      cfg.Table,
		batchSize:  cfg.BatchSize,
		batchPause: cfg.BatchPause,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// UpsertPrices posts records in batches with merge-duplicates resolution on
// (symbol, date) and returns how many were accepted. A failed batch is logged
// and skipped; the remaining batches are still sent.
func (c *Client) UpsertPrices(ctx context.Context, records []models.DailyPrice) (int, error) {
	if len(records) == 0 {
		log.Println("No records to update")
		return 0, nil
	}
	if c.serviceKey == "" {
		return 0, fmt.Errorf("supabase service key not set")
	}

	endpoint := c.tableURL(c.table) + "?on_conflict=symbol,date"
	batches := prices.Batch(records, c.batchSize)
	log.Printf("Updating %s with %d records in %d batches...", c.table, len(records), len(batches))

	written := 0
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		err := c.post(ctx, endpoint, toRows(batch), "resolution=merge-duplicates,return=minimal")
		if err != nil {
			log.Printf("Batch %d failed: %v", i+1, err)
		} else {
			written += len(batch)
			log.Printf("Batch %d: %d records updated", i+1, len(batch))
		}

		if c.batchPause > 0 && i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			case <-time.After(c.batchPause):
			}
		}
	}

	log.Printf("Successfully updated %d/%d records", written, len(records))
	return written, nil
}

// LatestPrice reads back the most recent row for symbol. It returns nil
// without error when the table has no rows for the symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (*models.DailyPrice, error) {
	q := url.Values{}
	q.Set("symbol", "eq."+symbol)
	q.Set("order", "date.desc")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tableURL(c.table)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var rows []priceRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse latest price: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fromRow(rows[0])
}

// LogError records a failed run in the error_logs table. Failures are only
// logged locally.
func (c *Client) LogError(ctx context.Context, errorType string, cause error) {
	if cause == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{"error": cause.Error()})
	row := errorLogRow{
		ErrorType:    errorType,
		ErrorMessage: cause.Error(),
		ErrorDetails: string(details),
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.post(ctx, c.tableURL("error_logs"), []errorLogRow{row}, "return=minimal"); err != nil {
		log.Printf("Failed to log error: %v", err)
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, prefer string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	return &StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 200)}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/rest/v1/" + table
}

func toRows(records []models.DailyPrice) []priceRow {
	rows := make([]priceRow, len(records))
	for i, r := range records {
		rows[i] = priceRow{
			Symbol:     r.Symbol,
			Date:       r.DateString(),
			Open:       json.Number(r.Open.String()),
			High:       json.Number(r.High.String()),
			Low:        json.Number(r.Low.String()),
			Close:      json.Number(r.Close.String()),
			Volume:     r.Volume,
			DataSource: r.DataSource,
		}
	}
	return rows
}

func fromRow(row priceRow) (*models.DailyPrice, error) {
	date, err := models.ParseTradeDate(row.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", row.Date, err)
	}
	p := &models.DailyPrice{
		Symbol:     row.Symbol,
		Date:       date,
		Volume:     row.Volume,
		DataSource: row.DataSource,
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src json.Number
	}{{&p.Open, row.Open}, {&p.High, row.High}, {&p.Low, row.Low}, {&p.Close, row.Close}} {
		if f.src == "" {
			continue
		}
		if *f.dst, err = decimal.NewFromString(f.src.String()); err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", f.src, err)
		}
	}
	return p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
