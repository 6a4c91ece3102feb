package stats

import "testing"

func TestNodeStats_SnapshotReflectsCounters(t *testing.T) {
	s := New()
	s.PacketsForwarded.Add(3)
	s.PacketsDropped.Add(1)
	s.Crashed.Store(true)

	snap := s.Snapshot()
	if snap.PacketsForwarded != 3 || snap.PacketsDropped != 1 || !snap.Crashed {
		t.Fatalf("got %+v", snap)
	}
}

func TestNodeStats_StartsZero(t *testing.T) {
	snap := New().Snapshot()
	if snap.PacketsForwarded != 0 || snap.Crashed {
		t.Fatalf("expected zero-value snapshot, got %+v", snap)
	}
}
