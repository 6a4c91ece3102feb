// Package drone implements the lossy source-routed packet forwarder
// (spec.md §4.1) and its participation in flood-based topology discovery
// (spec.md §4.2).
//
// Grounded in the teacher's device/router/router.go (HandlePacket / forward
// dispatch / queue+counters idiom) and in
// original_source/codice/drone/src/main.rs (TrustDrone.run, the exact
// select_biased! forwarding algorithm this package reproduces verbatim in
// Go's select statement).
package drone

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
	"github.com/dronemesh/overlay/core/dedupe"
	"github.com/dronemesh/overlay/core/stats"
	"github.com/dronemesh/overlay/core/tracing"
	"github.com/dronemesh/overlay/transport"
)

// Command is a control-plane instruction, delivered with priority over
// inbound packets (spec.md §4.1 "control-biased priority").
type Command interface{ isCommand() }

type AddSenderCmd struct {
	ID   core.NodeID
	Link *transport.Link
}

type RemoveSenderCmd struct{ ID core.NodeID }

type SetPDRCmd struct{ PDR float64 }

type CrashCmd struct{}

func (AddSenderCmd) isCommand()    {}
func (RemoveSenderCmd) isCommand() {}
func (SetPDRCmd) isCommand()       {}
func (CrashCmd) isCommand()        {}

// Config configures a Drone. RNG defaults to rand.Float64 and only needs
// overriding in tests that require a deterministic drop sequence.
type Config struct {
	SelfID core.NodeID
	PDR    float64
	RNG    func() float64
	Logger *slog.Logger
	Events controller.Sink
}

// Drone is a single forwarding node: one goroutine owns all of its state
// (neighbor links, pdr, dedup set), reachable only through its command and
// inbound-packet channels (spec.md §5 "no shared mutable state").
type Drone struct {
	self   core.NodeID
	pdr    float64
	rng    func() float64
	log    *slog.Logger
	events controller.Sink
	dedup  *dedupe.Set
	stats  *stats.NodeStats

	commands chan Command
	inbound  *transport.Mailbox

	mu        sync.Mutex
	neighbors map[core.NodeID]*transport.Link
}

// New creates a Drone. The caller owns wiring the returned inbound mailbox
// into the transport.Bus and must call Run in its own goroutine.
func New(cfg Config, inbound *transport.Mailbox) *Drone {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	rng := cfg.RNG
	if rng == nil {
		rng = rand.Float64
	}
	events := cfg.Events
	if events == nil {
		events = controller.Discard
	}
	return &Drone{
		self:      cfg.SelfID,
		pdr:       cfg.PDR,
		rng:       rng,
		log:       log.With("drone", cfg.SelfID).WithGroup("drone"),
		events:    events,
		dedup:     dedupe.New(),
		stats:     stats.New(),
		commands:  make(chan Command, 16),
		inbound:   inbound,
		neighbors: make(map[core.NodeID]*transport.Link),
	}
}

// Commands returns the channel used to send control commands to this drone.
func (d *Drone) Commands() chan<- Command { return d.commands }

// Stats returns a point-in-time snapshot of this drone's packet counters
// (SPEC_FULL.md §12.2), safe to read from any goroutine.
func (d *Drone) Stats() stats.Snapshot { return d.stats.Snapshot() }

// AddSender, RemoveSender, SetPDR, and Crash satisfy controller.DroneHandle
// by forwarding to the command channel, giving the simulation controller a
// direct handle on this drone without either package importing the other's
// command types.
func (d *Drone) AddSender(id core.NodeID, link *transport.Link) {
	d.commands <- AddSenderCmd{ID: id, Link: link}
}

func (d *Drone) RemoveSender(id core.NodeID) {
	d.commands <- RemoveSenderCmd{ID: id}
}

func (d *Drone) SetPDR(pdr float64) {
	d.commands <- SetPDRCmd{PDR: pdr}
}

func (d *Drone) Crash() {
	d.commands <- CrashCmd{}
}

// Run executes the drone's event loop until Crash is received or ctx is
// cancelled. Control commands are checked with priority over inbound
// packets via a nested select (spec.md §4.1 "control-biased priority").
func (d *Drone) Run(ctx context.Context) {
	for {
		select {
		case cmd := <-d.commands:
			if d.handleCommand(cmd) {
				return
			}
			continue
		case <-ctx.Done():
			return
		default:
		}

		select {
		case cmd := <-d.commands:
			if d.handleCommand(cmd) {
				return
			}
		case pkt := <-d.inbound.Recv():
			d.handlePacket(pkt)
		case <-ctx.Done():
			return
		}
	}
}

// handleCommand applies a control command and reports whether the loop
// should terminate (Crash).
func (d *Drone) handleCommand(cmd Command) bool {
	switch c := cmd.(type) {
	case AddSenderCmd:
		d.mu.Lock()
		d.neighbors[c.ID] = c.Link
		d.mu.Unlock()
	case RemoveSenderCmd:
		d.mu.Lock()
		delete(d.neighbors, c.ID)
		d.mu.Unlock()
	case SetPDRCmd:
		d.mu.Lock()
		d.pdr = c.PDR
		d.mu.Unlock()
	case CrashCmd:
		d.log.Info("crashed")
		d.stats.Crashed.Store(true)
		d.inbound.Close()
		return true
	}
	return false
}

func (d *Drone) neighbor(id core.NodeID) (*transport.Link, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.neighbors[id]
	return l, ok
}

func (d *Drone) neighborIDs(except core.NodeID, hasExcept bool) []*transport.Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*transport.Link, 0, len(d.neighbors))
	for id, l := range d.neighbors {
		if hasExcept && id == except {
			continue
		}
		out = append(out, l)
	}
	return out
}

// handlePacket implements spec.md §4.1's five-step forward algorithm.
func (d *Drone) handlePacket(pkt *codec.Packet) {
	if pkt.Kind == codec.KindFloodRequest {
		d.handleFloodRequest(pkt)
		return
	}

	route := &pkt.Route
	if route.Current() != d.self {
		if route.HopIndex == 0 {
			return
		}
		route.HopIndex--
		d.sendNack(pkt, codec.NackUnexpectedRecipient, d.self)
		return
	}

	route.HopIndex++

	if route.HopIndex >= len(route.Hops) {
		route.HopIndex--
		d.sendNack(pkt, codec.NackDestinationIsDrone, 0)
		return
	}

	next := route.Hops[route.HopIndex]
	link, ok := d.neighbor(next)
	if !ok {
		route.HopIndex--
		d.sendNack(pkt, codec.NackErrorInRouting, next)
		return
	}

	switch pkt.Kind {
	case codec.KindMsgFragment:
		if d.rng() < d.pdr {
			d.stats.PacketsDropped.Add(1)
			d.events.Publish(controller.PacketDroppedEvent(d.self, pkt))
			route.HopIndex--
			d.sendNack(pkt, codec.NackDropped, 0)
			return
		}
		d.stats.FragmentsForwarded.Add(1)
		d.forward(link, pkt)
	case codec.KindAck:
		d.stats.AcksForwarded.Add(1)
		d.forward(link, pkt)
	case codec.KindNack:
		d.stats.NacksForwarded.Add(1)
		d.forward(link, pkt)
	case codec.KindFloodResponse:
		d.stats.FloodResponsesForwarded.Add(1)
		d.forward(link, pkt)
	}
}

func (d *Drone) forward(link *transport.Link, pkt *codec.Packet) {
	endSpan := tracing.ForwardSpan(pkt.SessionID, uint8(d.self), uint8(link.Neighbor()))
	err := link.Send(pkt)
	endSpan(err)
	if err != nil {
		d.log.Warn("forward failed, neighbor unreachable", "to", link.Neighbor(), "err", err)
		return
	}
	d.stats.PacketsForwarded.Add(1)
	d.events.Publish(controller.PacketSentEvent(d.self, pkt))
}

// sendNack builds the reversed-prefix route and emits a Nack, per
// spec.md §4.1 step 1/3/4: the reverse route is hops[0..hop_index] reversed.
func (d *Drone) sendNack(pkt *codec.Packet, reason codec.NackReason, detail core.NodeID) {
	reversed := pkt.Route.Reversed()
	if len(reversed.Hops) < 2 {
		return
	}
	fragIdx := uint64(0)
	if pkt.Kind == codec.KindMsgFragment {
		fragIdx = pkt.Fragment.FragmentIndex
	}
	nack := codec.NewNack(pkt.SessionID, reversed, fragIdx, reason, detail)

	next := reversed.Hops[1]
	link, ok := d.neighbor(next)
	if !ok {
		return
	}
	if reason == codec.NackDropped {
		if err := link.Send(nack); err == nil {
			d.events.Publish(controller.PacketSentEvent(d.self, nack))
		}
		return
	}
	d.forward(link, nack)
}

// handleFloodRequest implements spec.md §4.2's drone flood algorithm:
// push self onto the trace, then either answer in place (dedup/leaf) or
// broadcast onward to every neighbor except prev.
func (d *Drone) handleFloodRequest(pkt *codec.Packet) {
	trace := append([]codec.PathTraceEntry(nil), pkt.PathTrace...)
	var prev core.NodeID
	hasPrev := len(trace) > 0
	if hasPrev {
		prev = trace[len(trace)-1].Node
	}
	trace = append(trace, codec.PathTraceEntry{Node: d.self, Kind: core.KindDrone})

	key := dedupe.FloodKey{FloodID: pkt.FloodID, Initiator: uint8(pkt.Initiator)}
	seen := d.dedup.HasSeen(key)

	outNeighbors := d.neighborIDs(prev, hasPrev)

	if seen || len(outNeighbors) == 0 {
		d.respondToFlood(pkt, trace, prev, hasPrev)
		return
	}

	fwd := pkt.Clone()
	fwd.PathTrace = trace
	for _, link := range outNeighbors {
		if err := link.Send(fwd.Clone()); err == nil {
			d.stats.FloodRequestsForwarded.Add(1)
			d.events.Publish(controller.PacketSentEvent(d.self, fwd))
		}
	}
}

func (d *Drone) respondToFlood(pkt *codec.Packet, trace []codec.PathTraceEntry, prev core.NodeID, hasPrev bool) {
	if !hasPrev {
		return
	}
	withTrace := pkt.Clone()
	withTrace.PathTrace = trace
	resp := codec.NewFloodResponse(withTrace)
	link, ok := d.neighbor(prev)
	if !ok {
		return
	}
	d.forward(link, resp)
}
