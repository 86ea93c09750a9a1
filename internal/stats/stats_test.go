package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerIncAndGather(t *testing.T) {
	tr := NewTracker()
	tr.Inc(EventsConsumedCount)
	tr.Inc(EventsConsumedCount)
	tr.Add(CommandsIssuedCount, 3)
	tr.Observe(ScalerReconcileLatency, 5*time.Millisecond)
	tr.SetGauge(ManifestsActiveSize, 7)

	if got := testutil.ToFloat64(tr.counters[EventsConsumedCount]); got != 2 {
		t.Fatalf("expected 2 events consumed, got %v", got)
	}
	if got := testutil.ToFloat64(tr.counters[CommandsIssuedCount]); got != 3 {
		t.Fatalf("expected 3 commands issued, got %v", got)
	}
	if got := testutil.ToFloat64(tr.gauges[ManifestsActiveSize]); got != 7 {
		t.Fatalf("expected gauge 7, got %v", got)
	}
}

func TestTrackerPanicsOnUnregisteredName(t *testing.T) {
	tr := NewTracker()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on unregistered counter name")
		}
	}()
	tr.Inc("not.a.real.metric.n")
}
