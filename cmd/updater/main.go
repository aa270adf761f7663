package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/trogers1052/stock-price-updater/internal/app"
	"github.com/trogers1052/stock-price-updater/internal/config"
	"github.com/trogers1052/stock-price-updater/internal/models"
	"github.com/trogers1052/stock-price-updater/internal/updater"
)

func main() {
	os.Exit(run(os.Stdout))
}

// run sends log lines to out along with the banner and summary so the cron
// output reads in order
func run(out io.Writer) int {
	log.SetOutput(out)
	cfg := config.Load()

	rule := strings.Repeat("=", 70)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "%s (%s) STOCK PRICE DAILY UPDATE\n", strings.ToUpper(cfg.Stock.CompanyName), cfg.Stock.Symbol)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Start time: %s\n\n", time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	if err := cfg.Validate(); err != nil {
		log.Printf("Configuration error: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		return 1
	}
	defer a.Close()

	result, err := a.Updater.Scheduled(ctx)
	printSummary(out, rule, result, err)
	return updater.ExitCode(result, err)
}

func printSummary(out io.Writer, rule string, result models.RunResult, err error) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, rule)
	switch {
	case result.Written > 0:
		fmt.Fprintln(out, "DAILY UPDATE COMPLETE")
	case result.Fetched == 0 && result.Weekend:
		fmt.Fprintln(out, "NO DATA FETCHED (weekend, markets closed)")
	default:
		fmt.Fprintln(out, "DAILY UPDATE FAILED")
	}
	fmt.Fprintln(out, rule)

	fmt.Fprintf(out, "Run ID: %s\n", result.RunID)
	if result.Source != "" {
		fmt.Fprintf(out, "Source: %s\n", result.Source)
	}
	fmt.Fprintf(out, "Records fetched: %d\n", result.Fetched)
	fmt.Fprintf(out, "Records updated: %d\n", result.Written)
	if result.Failed > 0 {
		fmt.Fprintf(out, "Records failed: %d\n", result.Failed)
	}
	if p := result.Latest; p != nil {
		fmt.Fprintf(out, "Latest: %s close=%s volume=%d source=%s\n",
			p.DateString(), p.Close.StringFixed(2), p.Volume, p.DataSource)
	}
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	if !result.EndedAt.IsZero() {
		fmt.Fprintf(out, "Duration: %s\n", result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
	}
}
