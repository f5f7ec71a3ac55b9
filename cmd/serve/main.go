package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"enrich/internal/catalog"
	_ "enrich/internal/catalog/all"
	"enrich/internal/config"
	"enrich/internal/match"
	"enrich/internal/portal"
	"enrich/internal/server"
)

// main starts the enrichment HTTP service: upload, catalog search, match
// and join, download.
func main() {
	var (
		cfgPath string
		addr    string
	)

	flag.StringVar(&cfgPath, "config", "configs/enrich.json", "service config JSON path")
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	hasError := false
	for _, iss := range config.Validate(cfg) {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid: %v", cfgPath)
	}

	ctx := context.Background()
	store, err := catalog.Open(ctx, catalog.Config{Kind: cfg.Store.Kind, DSN: cfg.Store.DSN})
	if err != nil {
		fatalf("open catalog store: %v", err)
	}
	defer store.Close()

	var suggester match.Suggester
	switch cfg.Matcher.Kind {
	case "static":
		suggester = match.Static{
			Index:         cfg.Matcher.Static.Index,
			UserColumn:    cfg.Matcher.Static.UserColumn,
			CatalogColumn: cfg.Matcher.Static.CatalogColumn,
		}
		if *verbose {
			log.Printf("matcher: static verdict %+v", suggester)
		}
	default:
		suggester = match.NewOpenAI(match.OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       cfg.Matcher.Model,
			BaseURL:     cfg.Matcher.BaseURL,
			Temperature: cfg.Matcher.Temp,
			Timeout:     time.Duration(cfg.Matcher.TimeoutSeconds) * time.Second,
		})
	}

	client := portal.NewClient(nil, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second)

	log.Printf("serve: listening on %s (store=%s matcher=%s)", addr, cfg.Store.Kind, cfg.Matcher.Kind)
	if err := server.New(store, suggester, client).Start(addr); err != nil {
		fatalf("serve: %v", err)
	}
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
