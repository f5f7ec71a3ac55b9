package datadog

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"enrich/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(t *testing.T, sub *fakeSubmitter) *Backend {
	t.Helper()

	// A ticker that never fires keeps the flush loop quiet; tests call
	// Flush explicitly.
	b, err := NewBackend(context.Background(), Options{
		JobName:   "test",
		now:       func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(time.Duration) *time.Ticker { return time.NewTicker(time.Hour) },
		submitter: sub,
	})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestFlush_EmptyIsNoop verifies Flush submits nothing when no metrics
// were recorded.
func TestFlush_EmptyIsNoop(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("submissions = %d, want 0", sub.count())
	}
}

// TestFlush_BuildsSeriesAndResets verifies counters and histogram samples
// are translated into series and that the buffers are reset afterwards.
func TestFlush_BuildsSeriesAndResets(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter(metrics.CrawlEntriesTotal, 3, metrics.Labels{"status": "ok"})
	b.IncCounter(metrics.CrawlEntriesTotal, 1, metrics.Labels{"status": "csv_failed"})
	b.IncCounter(metrics.CrawlRecordsTotal, 12, metrics.Labels{"kind": "fresh"})
	b.ObserveHistogram(metrics.CrawlRunDurationSeconds, 2.5, metrics.Labels{"status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	payload, ok := sub.last()
	if !ok {
		t.Fatal("no payload submitted")
	}

	got := map[string]bool{}
	for _, s := range payload.Series {
		got[s.Metric] = true
	}
	for _, want := range []string{
		"crawl.entries.total",
		"crawl.records.total",
		"crawl.run.duration_seconds.p50",
		"crawl.run.duration_seconds.max",
	} {
		if !got[want] {
			t.Errorf("payload misses series %q (have %v)", want, got)
		}
	}

	// A second flush has nothing left to submit.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if sub.count() != 1 {
		t.Fatalf("submissions = %d, want 1", sub.count())
	}
}

// TestIncCounter_IgnoresUnknownAndNonPositive documents the intake
// filtering behavior.
func TestIncCounter_IgnoresUnknownAndNonPositive(t *testing.T) {
	sub := &fakeSubmitter{}
	b := newTestBackend(t, sub)

	b.IncCounter("some_other_metric", 5, nil)
	b.IncCounter(metrics.CrawlEntriesTotal, 0, metrics.Labels{"status": "ok"})
	b.IncCounter(metrics.CrawlEntriesTotal, -2, metrics.Labels{"status": "ok"})
	b.IncCounter(metrics.CrawlRecordsTotal, 1, nil) // no kind label

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if sub.count() != 0 {
		t.Fatalf("submissions = %d, want 0", sub.count())
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentileNearestRank(s, 0.50); got != 6 {
		t.Errorf("p50 = %v, want 6", got)
	}
	if got := percentileNearestRank(s, 1); got != 10 {
		t.Errorf("p100 = %v, want 10", got)
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Errorf("empty = %v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	got := ParseTagsCSV(" env:prod , service:enrich ,, ")
	if len(got) != 2 || got[0] != "env:prod" || got[1] != "service:enrich" {
		t.Errorf("ParseTagsCSV = %v", got)
	}
	if ParseTagsCSV("") != nil {
		t.Error("ParseTagsCSV(\"\") should be nil")
	}
}
