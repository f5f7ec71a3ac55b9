// Package ingest implements the catalog build pipeline: walk the portal
// feed, visit each dataset's detail page, probe its CSV, and merge the
// results into the persisted catalog.
//
// Failure policy: the feed is the backbone of a run and aborts it when it
// cannot be fetched. Everything after that degrades per entry: a broken
// detail page or CSV is logged, the entry keeps going with whatever could
// be extracted, and the merge step discards entries that ended up without
// a usable preview.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/PuerkitoBio/goquery"

	"enrich/internal/catalog"
	"enrich/internal/frame"
	"enrich/internal/metrics"
	"enrich/internal/portal"
)

// Fetcher is the portal surface the pipeline needs. *portal.Client
// implements it; tests substitute stubs.
type Fetcher interface {
	FetchFeed(ctx context.Context, url string, limit int) ([]portal.Entry, error)
	FetchDetail(ctx context.Context, url string) (*goquery.Document, error)
	FetchCSV(ctx context.Context, url string) (*frame.Frame, error)
}

// Config controls one crawl run.
type Config struct {
	FeedURL string

	// MaxEntries caps how many feed entries are processed per run.
	// If <= 0, defaults to 30.
	MaxEntries int

	// PreviewRows is the number of rows rendered into each record's
	// preview. If <= 0, defaults to 10.
	PreviewRows int

	Verbose bool
}

// Summary reports what a run did.
type Summary struct {
	// Processed is the number of feed entries examined.
	Processed int

	// Usable is how many of them yielded a record with a preview.
	Usable int

	// Persisted is the catalog size after the merge.
	Persisted int
}

// Builder runs the pipeline against a portal and a catalog store.
type Builder struct {
	fetcher Fetcher
	store   catalog.Store
	cfg     Config
}

func NewBuilder(f Fetcher, store catalog.Store, cfg Config) *Builder {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 30
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 10
	}
	return &Builder{fetcher: f, store: store, cfg: cfg}
}

// Run executes one crawl and persists the merged catalog. The run itself
// is atomic from a reader's point of view: the store swaps the catalog in
// one Replace call.
func (b *Builder) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	sum, err := b.run(ctx)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveHistogram(metrics.CrawlRunDurationSeconds, time.Since(start).Seconds(), metrics.Labels{"status": status})
	return sum, err
}

func (b *Builder) run(ctx context.Context) (Summary, error) {
	entries, err := b.fetcher.FetchFeed(ctx, b.cfg.FeedURL, b.cfg.MaxEntries)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch feed: %w", err)
	}

	fresh := make([]catalog.Record, 0, len(entries))
	for _, e := range entries {
		fresh = append(fresh, b.buildRecord(ctx, e))
	}
	metrics.IncCounter(metrics.CrawlRecordsTotal, float64(len(fresh)), metrics.Labels{"kind": "fresh"})

	existing, err := b.store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load catalog: %w", err)
	}
	merged := catalog.Merge(existing, fresh)
	if err := b.store.Replace(ctx, merged); err != nil {
		return Summary{}, fmt.Errorf("persist catalog: %w", err)
	}
	metrics.IncCounter(metrics.CrawlRecordsTotal, float64(len(merged)), metrics.Labels{"kind": "persisted"})

	sum := Summary{Processed: len(entries), Persisted: len(merged)}
	for _, r := range fresh {
		if r.PreviewAvailable() {
			sum.Usable++
		}
	}
	if b.cfg.Verbose {
		log.Printf("ingest: processed=%d usable=%d persisted=%d", sum.Processed, sum.Usable, sum.Persisted)
	}
	return sum, nil
}

// buildRecord turns one feed entry into a catalog record, best effort.
func (b *Builder) buildRecord(ctx context.Context, e portal.Entry) catalog.Record {
	rec := catalog.Record{
		Title:      e.Title,
		Author:     e.Author,
		Content:    e.Summary,
		Tag:        e.FirstTag(catalog.NoTag),
		Keywords:   []string{},
		TopTenCols: catalog.NotAvailable,
	}

	doc, err := b.fetcher.FetchDetail(ctx, e.ID)
	if err != nil {
		log.Printf("ingest: detail page for %q: %v", e.Title, err)
		metrics.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "detail_failed"})
		return rec
	}
	rec.CSV = portal.ExtractCSVLink(doc)
	rec.Keywords = portal.ExtractKeywords(doc)

	if rec.CSV == "" {
		metrics.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "dropped"})
		return rec
	}

	f, err := b.fetcher.FetchCSV(ctx, rec.CSV)
	if err != nil {
		log.Printf("ingest: csv for %q: %v", e.Title, err)
		metrics.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "csv_failed"})
		return rec
	}

	// A file whose second and third header cells are empty is an export
	// artifact, not a table; a single-entry signature means the parse
	// found no real structure. Both stay in the feed but never reach the
	// catalog.
	if f.HasUnnamedLeadingPair() || len(f.Signature()) <= 1 {
		metrics.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "dropped"})
		return rec
	}

	rec.ColAndTyp = f.Signature()
	rec.TopTenCols = f.Preview(b.cfg.PreviewRows)
	metrics.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "ok"})
	return rec
}
