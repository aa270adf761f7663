package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/updater"
)

// Runner executes update runs
type Runner interface {
	Daily(ctx context.Context) (models.RunResult, error)
	Backfill(ctx context.Context, from, to time.Time) (models.RunResult, error)
	MarketClosed() bool
	Now() time.Time
}

// PriceReader reads the newest stored record
type PriceReader interface {
	LatestPrice(ctx context.Context, symbol string) (*models.DailyPrice, error)
}

// SnapshotReader reads cached snapshots
type SnapshotReader interface {
	GetLatest(ctx context.Context, symbol string) (*models.DailyPrice, error)
	GetLastRun(ctx context.Context, symbol string) (*models.RunResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	runner        Runner
	store         PriceReader
	cache         SnapshotReader
	symbol        string
	cronSecret    string
	backfillStart time.Time
}

// NewHandler creates a new Handler
func NewHandler(runner Runner, store PriceReader, symbol, cronSecret string, backfillStart time.Time) *Handler {
	return &Handler{
		runner:        runner,
		store:         store,
		symbol:        symbol,
		cronSecret:    cronSecret,
		backfillStart: backfillStart,
	}
}

// SetCache enables cached reads
func (h *Handler) SetCache(cache SnapshotReader) {
	h.cache = cache
}

type runResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Result  *models.RunResult `json:"result,omitempty"`
}

type dateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type backfillSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type backfillRecord struct {
	Date   string          `json:"date"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type backfillResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	Symbol    string           `json:"symbol"`
	Source    string           `json:"source,omitempty"`
	DateRange dateRange        `json:"date_range"`
	Summary   backfillSummary  `json:"summary"`
	Records   []backfillRecord `json:"records"`
}

// Update handles POST /api/v1/update
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" || r.Header.Get("Authorization") != "Bearer "+h.cronSecret {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if h.runner.MarketClosed() {
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "Weekend - no trading",
			"skipped": true,
		})
		return
	}

	result, err := h.runner.Daily(r.Context())
	if result.Written == 0 {
		msg := "no records written"
		if err != nil {
			msg = err.Error()
		}
		log.Printf("Update run %s failed: %s", result.RunID, msg)
		respondJSON(w, http.StatusInternalServerError, runResponse{Success: false, Error: msg, Result: &result})
		return
	}

	respondJSON(w, http.StatusOK, runResponse{Success: true, Message: "Stock price updated", Result: &result})
}

// Backfill handles GET /api/v1/backfill?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	from := h.backfillStart
	if s := r.URL.Query().Get("start"); s != "" {
		d, err := models.ParseTradeDate(s)
		if err != nil {
			http.Error(w, "invalid start date", http.StatusBadRequest)
			return
		}
		from = d
	}
	if from.IsZero() {
		http.Error(w, "start is required", http.StatusBadRequest)
		return
	}

	to := models.TradeDate(h.runner.Now())
	if s := r.URL.Query().Get("end"); s != "" {
		d, err := models.ParseTradeDate(s)
		if err != nil {
			http.Error(w, "invalid end date", http.StatusBadRequest)
			return
		}
		to = d
	}
	if to.Before(from) {
		http.Error(w, "end is before start", http.StatusBadRequest)
		return
	}

	// The window end is inclusive of the whole trading day
	result, err := h.runner.Backfill(r.Context(), from, to.Add(24*time.Hour-time.Second))

	resp := backfillResponse{
		Success:   result.Written > 0,
		Message:   "Backfill completed",
		RunID:     result.RunID,
		Symbol:    h.symbol,
		Source:    result.Source,
		DateRange: dateRange{Start: from.Format(models.DateLayout), End: to.Format(models.DateLayout)},
		Summary:   backfillSummary{Total: result.Fetched, Successful: result.Written, Failed: result.Failed},
		Records:   make([]backfillRecord, 0, len(result.Records)),
	}
	for _, p := range result.Records {
		resp.Records = append(resp.Records, backfillRecord{Date: p.DateString(), Close: p.Close, Volume: p.Volume})
	}

	switch {
	case errors.Is(err, updater.ErrNothingFetched):
		resp.Message = "No data from sources"
		resp.Error = err.Error()
		respondJSON(w, http.StatusNotFound, resp)
	case result.Written == 0:
		resp.Message = "Backfill failed"
		if err != nil {
			resp.Error = err.Error()
		}
		respondJSON(w, http.StatusInternalServerError, resp)
	default:
		respondJSON(w, http.StatusOK, resp)
	}
}

// LatestPrice handles GET /api/v1/prices/latest
func (h *Handler) LatestPrice(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		p, err := h.cache.GetLatest(r.Context(), h.symbol)
		if err != nil {
			log.Printf("Cache read failed: %v", err)
		} else if p != nil {
			respondJSON(w, http.StatusOK, p)
			return
		}
	}

	p, err := h.store.LatestPrice(r.Context(), h.symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "no prices stored", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// LastRun handles GET /api/v1/runs/last
func (h *Handler) LastRun(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		http.Error(w, "run history not enabled", http.StatusNotFound)
		return
	}

	run, err := h.cache.GetLastRun(r.Context(), h.symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no runs recorded", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
