package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if listingFetchesTotal == nil || feedStopsTotal == nil ||
		postingsTotal == nil || detailOutcomesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveListingFetchLabelsTransportErrors(t *testing.T) {
	before := testutil.ToFloat64(listingFetchCounter("error"))
	ObserveListingFetch(0, time.Millisecond)
	if got := testutil.ToFloat64(listingFetchCounter("error")); got != before+1 {
		t.Errorf("expected error counter to grow by 1, got %f -> %f", before, got)
	}

	before = testutil.ToFloat64(listingFetchCounter("429"))
	ObserveListingFetch(429, time.Millisecond)
	if got := testutil.ToFloat64(listingFetchCounter("429")); got != before+1 {
		t.Errorf("expected 429 counter to grow by 1, got %f -> %f", before, got)
	}
}

func TestObserveOutcomes(t *testing.T) {
	Init()
	before := testutil.ToFloat64(postingsTotal.WithLabelValues("inserted"))
	ObservePosting("inserted")
	if got := testutil.ToFloat64(postingsTotal.WithLabelValues("inserted")); got != before+1 {
		t.Errorf("expected inserted counter to grow by 1, got %f", got)
	}

	before = testutil.ToFloat64(detailOutcomesTotal.WithLabelValues("retired"))
	ObserveDetail("retired", time.Millisecond)
	if got := testutil.ToFloat64(detailOutcomesTotal.WithLabelValues("retired")); got != before+1 {
		t.Errorf("expected retired counter to grow by 1, got %f", got)
	}

	before = testutil.ToFloat64(feedStopsTotal.WithLabelValues("end_of_feed"))
	ObserveFeedStop("end_of_feed")
	if got := testutil.ToFloat64(feedStopsTotal.WithLabelValues("end_of_feed")); got != before+1 {
		t.Errorf("expected end_of_feed counter to grow by 1, got %f", got)
	}
}

func listingFetchCounter(label string) prometheus.Counter {
	Init()
	return listingFetchesTotal.WithLabelValues(label)
}
