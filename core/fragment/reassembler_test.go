package fragment

import (
	"bytes"
	"testing"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
)

func TestReassembler_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{'z'}, 300)
	frags := codec.BuildFragments(payload)

	r := New(nil)
	key := Key{SessionID: 1, Origin: core.NodeID(5)}

	var got []byte
	var complete bool
	for _, f := range frags {
		var err error
		got, complete, err = r.Add(key, f)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !complete {
		t.Fatal("expected completion after final fragment")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestReassembler_IdempotentRetransmission(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 256)
	frags := codec.BuildFragments(payload)

	r := New(nil)
	key := Key{SessionID: 2, Origin: core.NodeID(1)}

	if _, complete, err := r.Add(key, frags[0]); err != nil || complete {
		t.Fatalf("unexpected state after first add: complete=%v err=%v", complete, err)
	}
	// retransmit the same fragment — should not double-count
	if _, complete, err := r.Add(key, frags[0]); err != nil || complete {
		t.Fatalf("identical retransmit must not count as a new fragment, got complete=%v err=%v", complete, err)
	}
	got, complete, err := r.Add(key, frags[1])
	if err != nil || !complete || !bytes.Equal(got, payload) {
		t.Fatalf("expected the original payload after the last fragment, got complete=%v err=%v len=%d", complete, err, len(got))
	}
}

func TestReassembler_OutOfOrder(t *testing.T) {
	payload := bytes.Repeat([]byte{'q'}, 300)
	frags := codec.BuildFragments(payload)

	r := New(nil)
	key := Key{SessionID: 3, Origin: core.NodeID(9)}

	order := []int{2, 0, 1}
	var got []byte
	var complete bool
	for _, idx := range order {
		var err error
		got, complete, err = r.Add(key, frags[idx])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !complete || !bytes.Equal(got, payload) {
		t.Fatalf("out-of-order reassembly failed: complete=%v", complete)
	}
}
