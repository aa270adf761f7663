package models

import "time"

// RunResult summarizes one fetch -> normalize -> upsert run. Records holds
// the normalized rows sent to the sink and is kept out of cached and
// published payloads.
type RunResult struct {
	RunID     string       `json:"run_id"`
	Symbol    string       `json:"symbol"`
	Source    string       `json:"source,omitempty"`
	From      time.Time    `json:"from"`
	To        time.Time    `json:"to"`
	Fetched   int          `json:"fetched"`
	Written   int          `json:"written"`
	Failed    int          `json:"failed"`
	Latest    *DailyPrice  `json:"latest,omitempty"`
	Records   []DailyPrice `json:"-"`
	Weekend   bool         `json:"weekend"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   time.Time    `json:"ended_at"`
}
