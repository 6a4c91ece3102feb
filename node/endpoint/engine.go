package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
	"github.com/dronemesh/overlay/core/fragment"
	"github.com/dronemesh/overlay/core/topology"
	"github.com/dronemesh/overlay/core/tracing"
	"github.com/dronemesh/overlay/transport"
)

// ErrNoRoute is returned by Send when the topology map has no path to the
// destination (spec.md §4.4 "If none, fail with NoRoute").
var ErrNoRoute = errors.New("endpoint: no route to destination")

// Handler is the single interface shared by every application-layer
// behavior this engine can host — a content server, a chat server, or a
// client — matching spec.md §9's "closed tagged union of handlers sharing
// one interface handle(command, source) -> reply". The engine owns all
// transport concerns (fragmentation, routing, acks); Handler only sees
// completed textual payloads.
type Handler interface {
	// Handle processes a completed payload received from source and
	// returns the textual reply to send back. An empty reply means no
	// response is sent (used by clients, which only update local state).
	Handle(command string, source core.NodeID) string
}

// Command is a control-plane instruction for an endpoint, analogous to the
// drone package's Command but without Crash/SetPDR — endpoints are not
// dropped probabilistically and the simulation controller does not crash
// clients or servers (spec.md §4.6 lists CrashDrone only).
type Command interface{ isCommand() }

type AddSenderCmd struct {
	ID   core.NodeID
	Link *transport.Link
}
type RemoveSenderCmd struct{ ID core.NodeID }

func (AddSenderCmd) isCommand()    {}
func (RemoveSenderCmd) isCommand() {}

// Config configures an Engine.
type Config struct {
	SelfID  core.NodeID
	Kind    core.Kind
	Handler Handler
	Logger  *slog.Logger
	Events  controller.Sink
}

// Engine is the shared event loop driving one client or server endpoint
// (spec.md §4.4): it owns the topology map, reassembler, in-flight table,
// and discovery helper, and dispatches completed payloads to a Handler.
type Engine struct {
	self   core.NodeID
	kind   core.Kind
	log    *slog.Logger
	events controller.Sink

	handler     Handler
	topo        *topology.Map
	reassembler *fragment.Reassembler
	inflight    *InFlight
	discovery   *Discovery

	commands chan Command
	inbound  *transport.Mailbox

	mu        sync.Mutex
	neighbors map[core.NodeID]*transport.Link

	awaitMu  sync.Mutex
	awaiting map[FragmentKey]chan ackResult
}

type ackResult struct {
	ok     bool
	reason codec.NackReason
}

// New creates an Engine. The caller wires the returned Engine's inbound
// mailbox into the transport.Bus and runs Run in its own goroutine.
func New(cfg Config, inbound *transport.Mailbox) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = controller.Discard
	}
	topo := topology.New(log)
	e := &Engine{
		self:        cfg.SelfID,
		kind:        cfg.Kind,
		log:         log.With("node", cfg.SelfID).WithGroup("endpoint"),
		events:      events,
		handler:     cfg.Handler,
		topo:        topo,
		reassembler: fragment.New(log),
		inflight:    NewInFlight(log),
		commands:    make(chan Command, 16),
		inbound:     inbound,
		neighbors:   make(map[core.NodeID]*transport.Link),
		awaiting:    make(map[FragmentKey]chan ackResult),
	}
	e.discovery = NewDiscovery(cfg.SelfID, cfg.Kind, topo, log)
	return e
}

// Commands returns the channel used to send control commands to this engine.
func (e *Engine) Commands() chan<- Command { return e.commands }

// AddSender and RemoveSender satisfy controller.NodeHandle by forwarding to
// the command channel, giving the simulation controller a direct handle on
// this endpoint without either package importing the other's command types.
func (e *Engine) AddSender(id core.NodeID, link *transport.Link) {
	e.commands <- AddSenderCmd{ID: id, Link: link}
}

func (e *Engine) RemoveSender(id core.NodeID) {
	e.commands <- RemoveSenderCmd{ID: id}
}

// Topology exposes the learned topology map (read-only use by the UI
// collaborator, per spec.md §9).
func (e *Engine) Topology() *topology.Map { return e.topo }

// Run executes the endpoint's event loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd)
			continue
		case <-ctx.Done():
			return
		default:
		}

		select {
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case pkt := <-e.inbound.Recv():
			e.dispatch(pkt)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case AddSenderCmd:
		e.mu.Lock()
		e.neighbors[c.ID] = c.Link
		e.mu.Unlock()
	case RemoveSenderCmd:
		e.mu.Lock()
		delete(e.neighbors, c.ID)
		e.mu.Unlock()
	}
}

func (e *Engine) neighborLinks() []*transport.Link {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*transport.Link, 0, len(e.neighbors))
	for _, l := range e.neighbors {
		out = append(out, l)
	}
	return out
}

func (e *Engine) neighbor(id core.NodeID) (*transport.Link, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.neighbors[id]
	return l, ok
}

func (e *Engine) removeNeighbor(id core.NodeID) {
	e.mu.Lock()
	delete(e.neighbors, id)
	e.mu.Unlock()
	e.topo.RemoveNode(id)
}

// dispatch implements spec.md §4.4's receive pipeline: inbound packets are
// dispatched by kind.
func (e *Engine) dispatch(pkt *codec.Packet) {
	switch pkt.Kind {
	case codec.KindFloodRequest:
		e.discovery.HandleFloodRequest(pkt, e.replyAlongResponseRoute)
	case codec.KindFloodResponse:
		e.discovery.HandleFloodResponse(pkt)
		if pkt.Route.Current() != e.self {
			e.forwardAlongRoute(pkt)
		}
	case codec.KindMsgFragment:
		e.handleMsgFragment(pkt)
	case codec.KindAck:
		key := FragmentKey{SessionID: pkt.SessionID, FragmentIndex: pkt.AckFragmentIndex}
		e.inflight.Ack(key)
		e.notify(key, ackResult{ok: true})
	case codec.KindNack:
		key := FragmentKey{SessionID: pkt.SessionID, FragmentIndex: pkt.AckFragmentIndex}
		e.notify(key, ackResult{ok: false, reason: pkt.NackReason})
	}
}

func (e *Engine) notify(key FragmentKey, res ackResult) {
	e.awaitMu.Lock()
	ch, ok := e.awaiting[key]
	e.awaitMu.Unlock()
	if ok {
		select {
		case ch <- res:
		default:
		}
	}
}

// replyAlongResponseRoute sends a freshly-built FloodResponse to its first
// hop (the predecessor in the reversed path trace).
func (e *Engine) replyAlongResponseRoute(resp *codec.Packet) error {
	if len(resp.Route.Hops) < 2 {
		return nil
	}
	next := resp.Route.Hops[1]
	link, ok := e.neighbor(next)
	if !ok {
		e.events.Publish(controller.ShortcutEvent(e.self, resp))
		return nil
	}
	return link.Send(resp)
}

// forwardAlongRoute forwards a routed packet not addressed to self onward to
// its next hop — used when a FloodResponse merely transits this endpoint
// (spec.md §4.2 "subject to the same forwarding rules").
func (e *Engine) forwardAlongRoute(pkt *codec.Packet) {
	route := pkt.Route
	idx := -1
	for i, h := range route.Hops {
		if h == e.self {
			idx = i
			break
		}
	}
	if idx == -1 || idx+1 >= len(route.Hops) {
		return
	}
	next := route.Hops[idx+1]
	link, ok := e.neighbor(next)
	if !ok {
		return
	}
	_ = link.Send(pkt)
}

// handleMsgFragment feeds the reassembler, acknowledges the fragment as soon
// as it is accepted, and, once a payload completes, invokes the Handler
// (spec.md §4.4).
func (e *Engine) handleMsgFragment(pkt *codec.Packet) {
	key := fragment.Key{SessionID: pkt.SessionID, Origin: pkt.Route.Origin()}
	payload, complete, err := e.reassembler.Add(key, pkt.Fragment)
	if err != nil {
		e.log.Warn("reassembly error", "err", err)
		return
	}

	e.sendFragmentAck(pkt)

	if !complete {
		return
	}

	reply := e.handler.Handle(fragment.DecodeText(payload), pkt.Route.Origin())
	if reply == "" {
		return
	}
	if err := e.Send(pkt.Route.Origin(), []byte(reply)); err != nil {
		e.log.Warn("reply send failed", "to", pkt.Route.Origin(), "err", err)
	}
}

// sendFragmentAck acks a single fragment along the reversed route, per
// spec.md §4.4 "send an ack back along that route (per fragment, not per
// message)". If the first reverse hop has disappeared, the ack is handed to
// the controller as a shortcut packet (original_source's commented-out
// server.rs send_shortcut, reactivated here) rather than silently dropped —
// the sender will still observe this as a timeout and retry if the
// controller can't reach it either.
func (e *Engine) sendFragmentAck(pkt *codec.Packet) {
	reversed := pkt.Route.Reversed()
	if len(reversed.Hops) < 2 {
		return
	}
	ack := codec.NewAck(pkt.SessionID, reversed, pkt.Fragment.FragmentIndex)
	next := reversed.Hops[1]
	link, ok := e.neighbor(next)
	if !ok {
		e.events.Publish(controller.ShortcutEvent(e.self, ack))
		return
	}
	_ = link.Send(ack)
}

// Send implements spec.md §4.4's send pipeline: fragment the payload, route
// it by BFS, and drive each fragment through the ack/nack/retry cycle in
// order.
func (e *Engine) Send(dest core.NodeID, payload []byte) error {
	sessionID := newID()
	endSession := tracing.StartSession(sessionID)
	defer endSession()

	frags := fragment.Split(payload)

	route, err := e.topo.ShortestPath(e.self, dest)
	if err != nil {
		return ErrNoRoute
	}

	for _, frag := range frags {
		route, err = e.sendFragmentWithRetry(sessionID, frag, route, dest)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) sendFragmentWithRetry(sessionID uint64, frag codec.Fragment, route []core.NodeID, dest core.NodeID) ([]core.NodeID, error) {
	key := FragmentKey{SessionID: sessionID, FragmentIndex: frag.FragmentIndex}

	for attempt := 0; ; attempt++ {
		if len(route) < 2 {
			return nil, ErrNoRoute
		}

		r := codec.SourceRoute{Hops: route, HopIndex: 1}
		pkt := codec.NewMsgFragment(sessionID, r, frag)
		e.inflight.Track(key, pkt)

		link, ok := e.neighbor(route[1])
		if !ok {
			e.topo.RemoveNode(route[1])
			var err error
			route, err = e.rediscoverRoute(dest)
			if err != nil {
				return nil, err
			}
			continue
		}

		if err := link.Send(pkt); err != nil {
			e.removeNeighbor(route[1])
			var rerr error
			route, rerr = e.rediscoverRoute(dest)
			if rerr != nil {
				return nil, rerr
			}
			continue
		}

		res, timedOut := e.waitForAck(key, DefaultAckTimeout)
		if timedOut {
			if attempt >= DefaultMaxRetries {
				return nil, &ExhaustedRetries{Key: key}
			}
			continue
		}
		if res.ok {
			return route, nil
		}

		// Nack: routing nacks never surface to the application (spec.md
		// §7); retry transparently with a freshly-resolved route when the
		// nack implies a lost drone.
		if _, nerr := e.inflight.Nack(key, DefaultMaxRetries); nerr != nil {
			return nil, nerr
		}
		if res.reason != codec.NackDropped {
			var rerr error
			route, rerr = e.rediscoverRoute(dest)
			if rerr != nil {
				return nil, rerr
			}
		}
	}
}

// waitForAck blocks the current send pipeline on the inbound channel for
// fragment key's Ack/Nack, dispatching any other arriving packet through the
// normal receive pipeline in the meantime (spec.md §5 "suspension points are
// exactly the channel receives and the endpoint's wait for ack recv").
func (e *Engine) waitForAck(key FragmentKey, timeout time.Duration) (ackResult, bool) {
	ch := make(chan ackResult, 1)
	e.awaitMu.Lock()
	e.awaiting[key] = ch
	e.awaitMu.Unlock()
	defer func() {
		e.awaitMu.Lock()
		delete(e.awaiting, key)
		e.awaitMu.Unlock()
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case res := <-ch:
			return res, false
		case <-deadline.C:
			return ackResult{}, true
		case pkt := <-e.inbound.Recv():
			e.dispatch(pkt)
			select {
			case res := <-ch:
				return res, false
			default:
			}
		}
	}
}

// rediscoverRoute re-issues a flood and recomputes the shortest path once
// responses have had a chance to arrive (spec.md §4.2 "Discovery is
// re-issued whenever a local forwarding attempt to a neighbor fails").
func (e *Engine) rediscoverRoute(dest core.NodeID) ([]core.NodeID, error) {
	e.discovery.Initiate(e.neighborLinks())
	e.drainFloodResponses(200 * time.Millisecond)
	return e.topo.ShortestPath(e.self, dest)
}

// drainFloodResponses pumps the inbound channel for a short window so
// freshly-issued flood responses can enrich the topology map before the
// caller recomputes its route.
func (e *Engine) drainFloodResponses(window time.Duration) {
	deadline := time.NewTimer(window)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			return
		case pkt := <-e.inbound.Recv():
			e.dispatch(pkt)
		}
	}
}
