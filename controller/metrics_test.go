package controller

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveIncrementsMatchingCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe(Event{Kind: EventPacketDropped})
	m.Observe(Event{Kind: EventPacketDropped})
	m.Observe(Event{Kind: EventConnectionAdded})

	if got := testutil.ToFloat64(m.packetsDropped); got != 2 {
		t.Fatalf("got %v dropped, want 2", got)
	}
	if got := testutil.ToFloat64(m.connectionsAdd); got != 1 {
		t.Fatalf("got %v connections added, want 1", got)
	}
	if got := testutil.ToFloat64(m.packetsSent); got != 0 {
		t.Fatalf("got %v sent, want 0", got)
	}
}
