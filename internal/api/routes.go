package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/update", handler.Update).Methods("GET", "POST")
	api.HandleFunc("/backfill", handler.Backfill).Methods("GET")
	api.HandleFunc("/prices/latest", handler.LatestPrice).Methods("GET")
	api.HandleFunc("/runs/last", handler.LastRun).Methods("GET")

	return r
}
