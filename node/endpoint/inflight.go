package endpoint

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dronemesh/overlay/core/codec"
)

const (
	// DefaultAckTimeout bounds how long the send pipeline waits for an Ack
	// before treating the fragment as lost and resending it along the same
	// route.
	DefaultAckTimeout = 8 * time.Second

	// DefaultMaxRetries bounds per-fragment resend attempts before the send
	// pipeline surfaces ExhaustedRetries to the caller. spec.md §9 Open
	// Question (iv) leaves the source's unbounded retry as a tunable for a
	// production implementation; this package picks a finite default and
	// documents the choice rather than retrying forever.
	DefaultMaxRetries = 5
)

// FragmentKey identifies one in-flight fragment by (session_id,
// fragment_index), per spec.md §3 "in-flight table".
type FragmentKey struct {
	SessionID     uint64
	FragmentIndex uint64
}

// pendingFragment is a saved outbound packet awaiting its Ack.
type pendingFragment struct {
	packet  *codec.Packet
	sentAt  time.Time
	retries int
}

// InFlight tracks outbound fragments awaiting acknowledgement, keyed by
// (session_id, fragment_index) per spec.md §4.4's send pipeline. Adapted
// from the teacher's core/ack.Tracker (hash-keyed pending-ACK map with
// timeout/retry bookkeeping), re-keyed to the fragment-index pair this
// protocol uses and stripped of its own background ticking loop — the
// endpoint engine drives retry timing itself from its own select loop.
type InFlight struct {
	log *slog.Logger
	mu  sync.Mutex
	m   map[FragmentKey]*pendingFragment
}

// NewInFlight creates an empty in-flight table.
func NewInFlight(log *slog.Logger) *InFlight {
	if log == nil {
		log = slog.Default()
	}
	return &InFlight{log: log.WithGroup("inflight"), m: make(map[FragmentKey]*pendingFragment)}
}

// Track records pkt as awaiting an Ack for key. Tracking a key that is
// still pending replaces its packet and keeps its retry count.
func (f *InFlight) Track(key FragmentKey, pkt *codec.Packet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.m[key]; ok {
		p.packet = pkt
		p.sentAt = time.Now()
		return
	}
	f.m[key] = &pendingFragment{packet: pkt, sentAt: time.Now()}
}

// Ack removes key from the table; returns true if it was pending.
func (f *InFlight) Ack(key FragmentKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.m[key]
	delete(f.m, key)
	return ok
}

// ExhaustedRetries is the error returned when a fragment's resend attempts
// are exhausted.
// Open Question (iv) per spec.md §9: the original implementation retries
// unboundedly; this package caps retries and surfaces this sentinel instead.
type ExhaustedRetries struct{ Key FragmentKey }

func (e *ExhaustedRetries) Error() string {
	return "endpoint: exhausted retries"
}

// Nack looks up the saved packet for key, bumps its retry counter, and
// returns it for resending with a patched route. Returns (nil, err) once
// maxRetries is exceeded.
func (f *InFlight) Nack(key FragmentKey, maxRetries int) (*codec.Packet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[key]
	if !ok {
		return nil, nil
	}
	if p.retries >= maxRetries {
		delete(f.m, key)
		return nil, &ExhaustedRetries{Key: key}
	}
	p.retries++
	p.sentAt = time.Now()
	return p.packet, nil
}

// Packet returns the currently-tracked packet for key, if any.
func (f *InFlight) Packet(key FragmentKey) (*codec.Packet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.m[key]
	if !ok {
		return nil, false
	}
	return p.packet, true
}

// Abandon removes key without further retries.
func (f *InFlight) Abandon(key FragmentKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, key)
}

// PendingCount returns the number of fragments currently awaiting Ack.
func (f *InFlight) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.m)
}
