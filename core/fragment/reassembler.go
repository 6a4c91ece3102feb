// Package fragment implements the fragmentation and reassembly layer shared
// by clients and servers (spec.md §4.3): splitting an application payload
// into fixed 128-byte fragments and reconstructing it from arriving
// MsgFragment packets, keyed by (session_id, origin).
//
// This corresponds to the teacher's core/multipart reassembler, adapted from
// MULTIPART-packet concatenation (remaining-count header) to spec.md's
// fixed-offset (fragment_index * 128) windowed reassembly.
package fragment

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
)

// Key identifies a reassembly group: (session_id, origin) per spec.md §3.
type Key struct {
	SessionID uint64
	Origin    core.NodeID
}

// ErrOffsetOutOfRange is returned when a fragment's window exceeds the
// buffer allocated for its reassembly key (spec.md §4.3 edge case).
var ErrOffsetOutOfRange = fmt.Errorf("fragment: offset exceeds reassembly buffer")

type buffer struct {
	data     []byte
	total    uint64
	received map[uint64]bool
	end      uint64 // end of the last fragment's window, once it has arrived
}

// Reassembler collects MsgFragment packets and emits completed payloads once
// every fragment for a key has arrived. Every method takes the reassembler's
// own mutex, so it is safe for concurrent use; in practice it is owned by a
// single node's event loop (spec.md §5).
type Reassembler struct {
	log     *slog.Logger
	mu      sync.Mutex
	pending map[Key]*buffer
}

// New creates an empty Reassembler.
func New(log *slog.Logger) *Reassembler {
	if log == nil {
		log = slog.Default()
	}
	return &Reassembler{
		log:     log.WithGroup("fragment"),
		pending: make(map[Key]*buffer),
	}
}

// Add feeds one fragment into the reassembly buffer for key. It returns the
// completed payload (and true) once the buffer's fragment count equals
// TotalFragments; otherwise it returns (nil, false). The completed payload
// ends where the last fragment's data ends, so the zero padding of the last
// fragment's window is not included. Retransmitted fragments
// (same key and index) are idempotent: re-writing the same bytes at the same
// offset never changes the result (spec.md §8 invariant 6).
func (r *Reassembler) Add(key Key, frag codec.Fragment) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.pending[key]
	if !ok {
		b = &buffer{
			data:     make([]byte, frag.TotalFragments*codec.FragmentSize),
			total:    frag.TotalFragments,
			received: make(map[uint64]bool),
		}
		r.pending[key] = b
	}

	start := frag.FragmentIndex * codec.FragmentSize
	end := start + uint64(frag.Length)
	if end > uint64(len(b.data)) {
		r.log.Warn("fragment offset exceeds buffer", "session", key.SessionID, "origin", key.Origin, "index", frag.FragmentIndex)
		return nil, false, ErrOffsetOutOfRange
	}

	copy(b.data[start:end], frag.Payload())
	b.received[frag.FragmentIndex] = true
	if frag.FragmentIndex == b.total-1 {
		b.end = end
	}

	if uint64(len(b.received)) < b.total {
		return nil, false, nil
	}

	delete(r.pending, key)
	return b.data[:b.end], true, nil
}

// Abandon discards any in-progress reassembly for key, used when a
// reassembly or decoding error makes the stream unrecoverable (spec.md §7).
func (r *Reassembler) Abandon(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, key)
}

// PendingCount returns the number of in-progress reassemblies.
func (r *Reassembler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
