package dedupe

import (
	"testing"
	"time"
)

func TestSet_HasSeen_FirstTimeFalse(t *testing.T) {
	s := New()
	if s.HasSeen(FloodKey{FloodID: 1, Initiator: 5}) {
		t.Fatal("first observation should not be seen")
	}
}

func TestSet_HasSeen_DuplicateTrue(t *testing.T) {
	s := New()
	key := FloodKey{FloodID: 42, Initiator: 7}
	if s.HasSeen(key) {
		t.Fatal("first observation should not be seen")
	}
	if !s.HasSeen(key) {
		t.Fatal("second observation of the same (flood_id, initiator) should be seen")
	}
}

func TestSet_HasSeen_DistinctInitiatorsIndependent(t *testing.T) {
	s := New()
	if s.HasSeen(FloodKey{FloodID: 1, Initiator: 1}) {
		t.Fatal("unexpected dup")
	}
	if s.HasSeen(FloodKey{FloodID: 1, Initiator: 2}) {
		t.Fatal("different initiator with same flood_id must not collide")
	}
}

func TestSet_Expiry(t *testing.T) {
	s := NewWithTTL(10 * time.Millisecond)
	key := FloodKey{FloodID: 1, Initiator: 1}
	s.HasSeen(key)
	time.Sleep(30 * time.Millisecond)
	if s.HasSeen(key) {
		t.Fatal("expired entry should be treated as unseen")
	}
}

func TestSet_Clear(t *testing.T) {
	s := New()
	key := FloodKey{FloodID: 9, Initiator: 9}
	s.HasSeen(key)
	s.Clear()
	if s.HasSeen(key) {
		t.Fatal("clear should forget previously seen keys")
	}
}
