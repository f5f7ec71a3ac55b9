// Package metrics is a tiny instrumentation facade. Crawler and service
// code emit counters and histogram observations against the package-level
// functions; a backend (Datadog, Prometheus Pushgateway) is installed once
// at startup and receives everything from then on. Without a backend every
// call is a no-op.
package metrics

import "sync"

// Labels are free-form metric dimensions, e.g. {"status": "ok"}.
type Labels map[string]string

// Backend receives metric events. Implementations decide buffering and
// transport; callers only see the two emit calls plus Flush.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits buffered state. Called at least once at shutdown.
	Flush() error
}

// nopBackend drops everything. It is the default so code can emit metrics
// unconditionally.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Passing nil restores
// the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered metrics through the installed backend.
func Flush() error {
	return current().Flush()
}

// Metric names emitted by the crawler. Backends may special-case them.
const (
	// CrawlEntriesTotal counts processed feed entries by outcome, label
	// "status" in {ok, detail_failed, csv_failed, dropped}.
	CrawlEntriesTotal = "crawl_entries_total"

	// CrawlRecordsTotal counts catalog records by label "kind" in
	// {fresh, persisted}.
	CrawlRecordsTotal = "crawl_records_total"

	// CrawlRunDurationSeconds samples full crawl run durations, label
	// "status" in {ok, error}.
	CrawlRunDurationSeconds = "crawl_run_duration_seconds"

	// CrawlHTTPRequestsTotal counts portal HTTP requests by label
	// "status" (the numeric response code, or "error").
	CrawlHTTPRequestsTotal = "crawl_http_requests_total"
)
