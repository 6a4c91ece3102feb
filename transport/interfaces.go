// Package transport implements the per-link message channels that are the
// only way packets move between nodes (spec.md §2.2, §5): "Nodes communicate
// exclusively through bounded or unbounded per-link message channels — there
// is no shared mutable state across nodes."
//
// This corresponds to the teacher's transport.Transport interface (built for
// pluggable MQTT/serial radio backends); adapted down to a single in-process
// implementation since this system has no real network transport — every
// link is a simulated point-to-point channel between two node goroutines.
package transport

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
)

// ErrLinkClosed is returned by Send when the destination neighbor has
// crashed or the link has been severed by the controller.
var ErrLinkClosed = errors.New("transport: link closed")

// ErrLinkFull is returned by Send when the destination's inbound buffer is
// saturated. Treated identically to ErrLinkClosed by callers (spec.md §7
// "Transport — neighbor channel send failure").
var ErrLinkFull = errors.New("transport: link buffer full")

// DefaultBuffer is the default inbound channel capacity for a node's mailbox.
const DefaultBuffer = 64

// Mailbox is one node's inbound packet channel: the "per-link channel"
// endpoint that every neighbor's Link.Send ultimately writes into.
type Mailbox struct {
	ch     chan *codec.Packet
	closed atomic.Bool
}

// NewMailbox creates a Mailbox with the given buffer capacity.
func NewMailbox(buffer int) *Mailbox {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Mailbox{ch: make(chan *codec.Packet, buffer)}
}

// Recv returns the receive-only channel for use in a select statement
// (spec.md §5 "a biased select between control and packet channels").
func (m *Mailbox) Recv() <-chan *codec.Packet {
	return m.ch
}

// deliver pushes a packet into the mailbox. Returns ErrLinkClosed if the
// mailbox has been closed, ErrLinkFull if the buffer is saturated.
func (m *Mailbox) deliver(pkt *codec.Packet) error {
	if m.closed.Load() {
		return ErrLinkClosed
	}
	select {
	case m.ch <- pkt:
		return nil
	default:
		return ErrLinkFull
	}
}

// Close marks the mailbox closed. Subsequent deliver calls fail; already
// buffered packets remain available to Recv until drained. Matches
// spec.md §4.1 "Crash terminates the loop; pending inbound packets are
// dropped" — the owning node simply stops reading after Close.
func (m *Mailbox) Close() {
	m.closed.Store(true)
}

// IsClosed reports whether the mailbox has been closed.
func (m *Mailbox) IsClosed() bool {
	return m.closed.Load()
}

// Link is a live point-to-point sender to one neighbor's Mailbox.
type Link struct {
	to     core.NodeID
	target *Mailbox
}

// Neighbor returns the node id this link delivers to.
func (l *Link) Neighbor() core.NodeID { return l.to }

// Send delivers pkt to the neighbor's mailbox.
func (l *Link) Send(pkt *codec.Packet) error {
	return l.target.deliver(pkt)
}

// Bus is the shared registry of node mailboxes, standing in for the
// simulation's physical radio medium: AddSender/RemoveSender commands
// (spec.md §6) operate by creating or discarding Links against this
// registry. The Bus itself holds no per-node state beyond mailbox identity —
// node-owned state (topology, reassembly, in-flight table) stays with each
// node per spec.md §5.
type Bus struct {
	mu      sync.RWMutex
	mailbox map[core.NodeID]*Mailbox
}

// NewBus creates an empty link bus.
func NewBus() *Bus {
	return &Bus{mailbox: make(map[core.NodeID]*Mailbox)}
}

// Register creates (or replaces) the mailbox for id and returns it.
func (b *Bus) Register(id core.NodeID, buffer int) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb := NewMailbox(buffer)
	b.mailbox[id] = mb
	return mb
}

// Unregister closes and removes id's mailbox, simulating a crashed node:
// neighbors attempting to send to it will observe ErrLinkClosed.
func (b *Bus) Unregister(id core.NodeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailbox[id]; ok {
		mb.Close()
		delete(b.mailbox, id)
	}
}

// LinkTo returns a Link for sending to id, or (nil, false) if id has no
// registered mailbox (never connected, or already crashed).
func (b *Bus) LinkTo(id core.NodeID) (*Link, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.mailbox[id]
	if !ok {
		return nil, false
	}
	return &Link{to: id, target: mb}, true
}
