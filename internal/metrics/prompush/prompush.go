// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package. Crawl runs are batch jobs, so metrics can't be
// scraped; they are accumulated locally and pushed as one group per job on
// Flush().
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"enrich/internal/metrics"
)

// Backend implements metrics.Backend against a Pushgateway.
type Backend struct {
	pusher *push.Pusher

	entries  *prometheus.CounterVec
	records  *prometheus.CounterVec
	httpReqs *prometheus.CounterVec
	runDur   *prometheus.HistogramVec
}

// NewBackend registers the crawl metric set in a private registry and
// returns a backend pushing to gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: missing gateway URL")
	}
	if jobName == "" {
		jobName = "crawl"
	}

	reg := prometheus.NewRegistry()

	b := &Backend{
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CrawlEntriesTotal,
			Help: "Processed feed entries by outcome.",
		}, []string{"status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CrawlRecordsTotal,
			Help: "Catalog records handled, by kind.",
		}, []string{"kind"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CrawlHTTPRequestsTotal,
			Help: "Portal HTTP requests by response status.",
		}, []string{"status"}),
		runDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.CrawlRunDurationSeconds,
			Help:    "Full crawl run duration.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"status"}),
	}

	for _, c := range []prometheus.Collector{b.entries, b.records, b.httpReqs, b.runDur} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.CrawlEntriesTotal:
		b.entries.WithLabelValues(orUnknown(labels["status"])).Add(delta)
	case metrics.CrawlRecordsTotal:
		if kind := labels["kind"]; kind != "" {
			b.records.WithLabelValues(kind).Add(delta)
		}
	case metrics.CrawlHTTPRequestsTotal:
		b.httpReqs.WithLabelValues(orUnknown(labels["status"])).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	if name == metrics.CrawlRunDurationSeconds {
		b.runDur.WithLabelValues(orUnknown(labels["status"])).Observe(value)
	}
}

// Flush pushes the accumulated metric group to the gateway, replacing the
// previous push for this job.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var _ metrics.Backend = (*Backend)(nil)
