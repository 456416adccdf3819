package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// go test -v --run TestCounters
func TestCounters(t *testing.T) {
	m := New()

	m.IncTick("X")
	m.IncTick("X")
	m.IncDispatch("X", "submitted")
	m.IncDropped("late")
	m.SetRSI("X", 25.5)

	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("X")); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues("X", "submitted")); got != 1 {
		t.Errorf("dispatches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DroppedTicks.WithLabelValues("late")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LastRSI.WithLabelValues("X")); got != 25.5 {
		t.Errorf("rsi = %v, want 25.5", got)
	}
}

// go test -v --run TestNilMetricsIsNoop
func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncTick("X")
	m.IncDispatch("X", "failed")
	m.IncReconnect()
	m.SetRSI("X", 1)
}
