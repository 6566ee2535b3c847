// Command runonce executes a single synchronization and validation run and
// prints the run report as JSON. It is intended for cron jobs and for
// verifying a deployment against a live FIRMS map key.
//
// Usage:
//
//	go run ./cmd/runonce -bbox "-110,53,-100,60" -days 2
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberwatch/firesync/internal/adapter/firms"
	"github.com/emberwatch/firesync/internal/config"
	"github.com/emberwatch/firesync/internal/match"
	"github.com/emberwatch/firesync/internal/observability"
	"github.com/emberwatch/firesync/internal/pipeline"
	"github.com/emberwatch/firesync/internal/store"
)

func main() {
	bbox := flag.String("bbox", "", "bounding box lon_min,lat_min,lon_max,lat_max (defaults to FIRMS_AREA_BBOX)")
	days := flag.Int("days", 0, "FIRMS lookback in days (defaults to FIRMS_DAYS)")
	flag.Parse()

	if code := run(*bbox, *days); code != 0 {
		os.Exit(code)
	}
}

func run(bbox string, days int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	if days > 0 {
		cfg.RecencyDays = days
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: database connect: %v\n", err)
		return 1
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: schema init: %v\n", err)
		return 1
	}

	client := firms.NewClient(cfg.FirmsMapKey, cfg.FirmsBaseURL, cfg.FetchTimeout, logger)
	p := pipeline.New(client, st, match.New(logger), nil, cfg.AreaBBox, cfg.RecencyDays, logger, metrics)

	rep, err := p.RunOnce(ctx, bbox)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: sync run: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: encode report: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}
