// Package app wires configuration into a ready Updater and its optional
// cache and event producer.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/cache"
	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/database"
	"github.com/trogers1052/stock-price-updater/internal/kafka"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/sources"
	"github.com/trogers1052/stock-price-updater/internal/supabase"
	"github.com/trogers1052/stock-price-updater/internal/updater"
)

// App holds the wired components. Cache and Producer are nil when disabled.
type App struct {
	Config   *config.Config
	Updater  *updater.Updater
	Sink     updater.Sink
	Cache    *cache.Cache
	Producer *kafka.Producer

	closers []func() error
}

// New builds every component cfg enables. cfg must already be valid.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	chain, err := sources.Build(cfg.Sources, cfg.Stock.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to build sources: %w", err)
	}
	names := make([]string, 0, len(chain.Sources()))
	for _, s := range chain.Sources() {
		names = append(names, s.Name())
	}
	log.Printf("Source chain: %v", names)

	sink, closeSink, err := OpenSink(cfg)
	if err != nil {
		return nil, err
	}
	a.Sink = sink
	if closeSink != nil {
		a.closers = append(a.closers, closeSink)
	}

	var backfillStart time.Time
	if cfg.Stock.BackfillStart != "" {
		backfillStart, err = models.ParseTradeDate(cfg.Stock.BackfillStart)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("invalid backfill start: %w", err)
		}
	}

	a.Updater = updater.New(chain, sink, updater.Options{
		Symbol:        cfg.Stock.Symbol,
		DaysBack:      cfg.Stock.DaysBack,
		BackfillStart: backfillStart,
		Verify:        cfg.Stock.Verify,
		Location:      cfg.Stock.Location(),
	})

	if cfg.Redis.Addr != "" {
		c, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Warning: cache disabled: %v", err)
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
			a.Cache = c
			a.Updater.SetCache(c)
			a.closers = append(a.closers, c.Close)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.Producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.Updater.SetPublisher(a.Producer)
		a.closers = append(a.closers, a.Producer.Close)
		log.Printf("Publishing run events to %s", cfg.Kafka.Topic)
	}

	return a, nil
}

// OpenSink returns the datastore selected by cfg.Sink and an optional closer
func OpenSink(cfg *config.Config) (updater.Sink, func() error, error) {
	switch cfg.Sink {
	case config.SinkREST:
		log.Printf("Writing to %s/rest/v1/%s", cfg.Supabase.URL, cfg.Supabase.Table)
		return supabase.NewClient(cfg.Supabase), nil, nil
	case config.SinkPostgres:
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Database.MigrationsDir != "" {
			if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
				db.Close()
				return nil, nil, err
			}
			log.Println("Database migrations applied")
		}
		log.Printf("Writing to postgres %s:%s/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
		return &database.PriceStore{DB: db, BatchSize: cfg.Supabase.BatchSize}, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

// Close releases every opened component in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
	a.closers = nil
}
