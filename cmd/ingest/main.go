package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"enrich/internal/config"
	"enrich/internal/ingest"
	"enrich/internal/metrics"
	"enrich/internal/metrics/datadog"
	"enrich/internal/metrics/prompush"
	"enrich/internal/portal"

	"enrich/internal/catalog"
	// register all catalog backends; config selects which one runs.
	_ "enrich/internal/catalog/all"
)

// main is the entry point for the crawler binary. It loads the config,
// optionally initializes a metrics backend, and runs the catalog build
// either once or on a cron schedule.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		cronSpec          string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/enrich.json", "service config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&cronSpec, "every", "", "cron spec for repeated runs (e.g. '@hourly'); empty runs once")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %v", cfgPath)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		return
	}

	// Decide metrics backend: flag → env → default (none).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend("enrich_crawl", gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v url=%v", backendName, gwURL)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "datadog":
		// Buffers metrics and submits periodically, plus one final time
		// at shutdown. Long scheduled runs produce a real time series.
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: "enrich_crawl",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v", backendName)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()

	store, err := catalog.Open(ctx, catalog.Config{Kind: cfg.Store.Kind, DSN: cfg.Store.DSN})
	if err != nil {
		fatalf("open catalog store: %v", err)
	}
	defer store.Close()

	client := portal.NewClient(nil, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second)
	builder := ingest.NewBuilder(client, store, ingest.Config{
		FeedURL:     cfg.Feed.URL,
		MaxEntries:  cfg.Feed.MaxEntries,
		PreviewRows: cfg.PreviewRows,
		Verbose:     *verbose,
	})

	runOnce := func() {
		start := time.Now()
		sum, err := builder.Run(ctx)
		if err != nil {
			log.Printf("ingest: run failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Printf("ingest: done in %s: processed=%d usable=%d persisted=%d",
			time.Since(start).Round(time.Millisecond), sum.Processed, sum.Usable, sum.Persisted)
	}

	if cronSpec == "" {
		runOnce()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cronSpec, runOnce); err != nil {
		fatalf("invalid -every spec %q: %v", cronSpec, err)
	}
	log.Printf("ingest: scheduled with %q", cronSpec)
	c.Start()
	defer c.Stop()

	// Run immediately as well; the schedule covers subsequent runs.
	runOnce()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Printf("ingest: shutting down")
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
