package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/prices"
)

// Chain tries its sources in order and returns the first non-empty result.
// A source that errors or yields no valid rows is logged and skipped.
type Chain struct {
	sources []Source
}

// NewChain creates a fallback chain
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Name returns the source tag
func (c *Chain) Name() string {
	return "chain"
}

// Sources returns the configured sources in order
func (c *Chain) Sources() []Source {
	return c.sources
}

// Fetch implements Source
func (c *Chain) Fetch(ctx context.Context, from, to time.Time) ([]models.DailyPrice, error) {
	_, records, err := c.FetchFirst(ctx, from, to)
	return records, err
}

// FetchFirst returns the name of the source that answered alongside its rows
func (c *Chain) FetchFirst(ctx context.Context, from, to time.Time) (string, []models.DailyPrice, error) {
	var errs []error

	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		log.Printf("Trying source %s...", src.Name())
		records, err := src.Fetch(ctx, from, to)
		if err != nil {
			log.Printf("Source %s failed: %v", src.Name(), err)
			errs = append(errs, err)
			continue
		}
		if len(prices.Normalize(records)) == 0 {
			log.Printf("Source %s returned no valid rows", src.Name())
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), ErrNoData))
			continue
		}
		return src.Name(), records, nil
	}

	if len(errs) == 0 {
		return "", nil, fmt.Errorf("no sources configured: %w", ErrNoData)
	}
	return "", nil, fmt.Errorf("all stock price sources failed: %w", errors.Join(errs...))
}

// Build creates the chain described by cfg. Sources that need credentials
// are left out when none are configured.
func Build(cfg config.SourcesConfig, symbol string) (*Chain, error) {
	var chain []Source

	for _, name := range cfg.Order {
		switch name {
		case "nse":
			chain = append(chain, NewNSE(symbol, cfg.Timeout))
		case "yahoo":
			chain = append(chain, NewYahoo(symbol, cfg.Timeout))
		case "tiingo":
			if cfg.TiingoAPIToken == "" {
				log.Printf("Skipping tiingo: TIINGO_API_TOKEN not set")
				continue
			}
			chain = append(chain, NewTiingo(symbol, cfg.TiingoAPIToken))
		case "alphavantage":
			if cfg.AlphaVantageAPIKey == "" {
				log.Printf("Skipping alphavantage: ALPHA_VANTAGE_API_KEY not set")
				continue
			}
			chain = append(chain, NewAlphaVantage(symbol, cfg.AlphaVantageAPIKey, cfg.Timeout))
		case "twelvedata":
			if cfg.TwelveDataAPIKey == "" {
				log.Printf("Skipping twelvedata: TWELVE_DATA_API_KEY not set")
				continue
			}
			chain = append(chain, NewTwelveData(symbol, cfg.TwelveDataAPIKey, cfg.Timeout))
		case "scrape":
			if cfg.ScrapeURL == "" {
				log.Printf("Skipping scrape: SCRAPE_URL not set")
				continue
			}
			chain = append(chain, NewScrape(cfg.ScrapeURL, symbol, cfg.Timeout))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}

	if len(chain) == 0 {
		return nil, errors.New("no usable sources configured")
	}
	return NewChain(chain...), nil
}
