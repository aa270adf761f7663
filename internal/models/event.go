package models

import "time"

// Event type constants
const (
	EventPricesUpdated      = "PRICES_UPDATED"
	EventPricesUpdateFailed = "PRICES_UPDATE_FAILED"
	EventBackfillRequested  = "BACKFILL_REQUESTED"
)

// PriceEvent is published to Kafka after every update run
type PriceEvent struct {
	EventType string      `json:"event_type"`
	RunID     string      `json:"run_id"`
	Symbol    string      `json:"symbol"`
	Source    string      `json:"source,omitempty"`
	Fetched   int         `json:"fetched"`
	Written   int         `json:"written"`
	Latest    *DailyPrice `json:"latest,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// BackfillRequest asks the updater to re-fetch and upsert a date range.
// Dates are YYYY-MM-DD; an empty End means today.
type BackfillRequest struct {
	EventType string `json:"event_type"`
	Symbol    string `json:"symbol,omitempty"`
	Start     string `json:"start"`
	End       string `json:"end,omitempty"`
}
