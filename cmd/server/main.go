package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/api"
	"github.com/trogers1052/stock-price-updater/internal/app"
	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/kafka"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

func main() {
	log.Println("Starting stock price updater server...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Server.CronSecret == "" {
		log.Println("Warning: CRON_SECRET not set, /api/v1/update will reject every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	var backfillStart time.Time
	if cfg.Stock.BackfillStart != "" {
		backfillStart, _ = models.ParseTradeDate(cfg.Stock.BackfillStart)
	}

	handler := api.NewHandler(a.Updater, a.Sink, cfg.Stock.Symbol, cfg.Server.CronSecret, backfillStart)
	if a.Cache != nil {
		handler.SetCache(a.Cache)
	}

	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.BackfillTopic, cfg.Kafka.GroupID, cfg.Stock.Symbol, a.Updater)
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Kafka consumer stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.SetupRoutes(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		log.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Kafka consumer close error: %v", err)
		}
	}

	log.Println("Server stopped")
}
