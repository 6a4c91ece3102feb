// Package controller implements the simulation controller (spec.md §4.6):
// topology mutation commands, the client-visible event stream, and the
// invariants that guard every mutation (connectivity, degree bounds).
//
// Grounded in original_source/codice/simulation_controller/src/simulation_controller.rs
// and forwarded_event.rs, stripped of the petgraph/egui_graphs rendering
// layer (colored_data.rs) that has no home in a headless core.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
	"github.com/dronemesh/overlay/transport"
)

// NodeHandle is the control surface every node kind exposes to the
// controller (spec.md §4.6 "AddSender(id, channel), RemoveSender(id)").
// Defined here rather than satisfied by an import of node/drone or
// node/endpoint directly, since both of those packages already import
// controller for the Sink type — a concrete adapter living in the
// simulation wiring package satisfies this interface for each node kind.
type NodeHandle interface {
	AddSender(id core.NodeID, link *transport.Link)
	RemoveSender(id core.NodeID)
}

// DroneHandle extends NodeHandle with the drone-only commands (spec.md §4.6
// "SetPacketDropRate(pdr), Crash").
type DroneHandle interface {
	NodeHandle
	SetPDR(pdr float64)
	Crash()
}

// ErrWouldDisconnect is returned by RemoveConnection and CrashDrone when the
// mutation would partition the mesh (spec.md §4.6 "rejected if it would
// disconnect the undirected graph formed by remaining nodes").
var ErrWouldDisconnect = errors.New("controller: mutation would disconnect the network")

// ErrDegreeInvariant is returned by AddConnection when the new edge would
// violate a client's 1-2 drone link bound (spec.md §4.6).
var ErrDegreeInvariant = errors.New("controller: connection violates client degree invariant")

// ErrUnknownNode is returned when an operation names a node id the
// controller has never registered.
var ErrUnknownNode = errors.New("controller: unknown node")

// Config configures a Controller.
type Config struct {
	Logger *slog.Logger
	// Bus resolves node ids to live Links, used for both AddConnection's
	// neighbor wiring and for direct shortcut delivery of unroutable
	// ack/nack/flood-response packets (spec.md §4.6).
	Bus *transport.Bus
}

// Controller is the authoritative topology owner and single-writer mutator
// described in spec.md §4.6/§5. It holds no node state of its own beyond
// the adjacency it was told about; every mutation command is relayed to the
// affected nodes' handles.
type Controller struct {
	log *slog.Logger
	bus *transport.Bus

	in  <-chan Event
	out *EventBus

	mu       sync.Mutex
	kinds    map[core.NodeID]core.Kind
	handles  map[core.NodeID]NodeHandle
	drones   map[core.NodeID]DroneHandle
	topology map[core.NodeID]map[core.NodeID]struct{}
}

// New creates a Controller. in is the inbound event stream fed by every
// node's Sink (typically an *EventBus shared across all nodes); out is the
// controller's own outbound stream, republishing every inbound event plus
// the control-plane events it synthesizes (ConnectionAdded, PDRSet, ...).
func New(cfg Config, in <-chan Event) *Controller {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:      log.WithGroup("controller"),
		bus:      cfg.Bus,
		in:       in,
		out:      NewEventBus(256),
		kinds:    make(map[core.NodeID]core.Kind),
		handles:  make(map[core.NodeID]NodeHandle),
		drones:   make(map[core.NodeID]DroneHandle),
		topology: make(map[core.NodeID]map[core.NodeID]struct{}),
	}
}

// Events returns the controller's outbound event stream, for the CLI,
// metrics collector, or httpapi websocket to subscribe to.
func (c *Controller) Events() <-chan Event { return c.out.Events() }

// Run drains the inbound node event stream until ctx is cancelled, handling
// ControllerShortcut packets by direct delivery and republishing every
// event on the outbound stream (spec.md §4.6).
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.in:
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

func (c *Controller) handleEvent(ev Event) {
	if ev.Kind == EventControllerShortcut {
		c.sendDirectly(ev.Packet)
	}
	c.out.Publish(ev)
}

// sendDirectly implements spec.md §4.6 "Shortcut packets ... are delivered
// directly to the destination's inbound channel", grounded in
// simulation_controller.rs's send_packet_directly.
func (c *Controller) sendDirectly(pkt *codec.Packet) {
	dest := pkt.Route.Destination()
	link, ok := c.bus.LinkTo(dest)
	if !ok {
		c.log.Warn("shortcut destination has no mailbox", "dest", dest)
		return
	}
	if err := link.Send(pkt); err != nil {
		c.log.Warn("shortcut delivery failed", "dest", dest, "err", err)
	}
}

func (c *Controller) ensureNodeLocked(id core.NodeID) {
	if _, ok := c.topology[id]; !ok {
		c.topology[id] = make(map[core.NodeID]struct{})
	}
}

// RegisterEndpoint adds a client or server to the controller's view without
// wiring any neighbor links yet; AddConnection does the actual wiring. Kind
// must be core.KindClient or core.KindServer.
func (c *Controller) RegisterEndpoint(id core.NodeID, kind core.Kind, handle NodeHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[id] = kind
	c.handles[id] = handle
	c.ensureNodeLocked(id)
}

// AddDrone registers a new drone and connects it to each of neighbors,
// mirroring simulation_controller.rs's add_drone (minus the thread-spawn,
// which is the wiring layer's job, not the controller's).
func (c *Controller) AddDrone(id core.NodeID, handle DroneHandle, neighbors []core.NodeID, pdr float64) {
	c.mu.Lock()
	c.kinds[id] = core.KindDrone
	c.handles[id] = handle
	c.drones[id] = handle
	c.ensureNodeLocked(id)
	c.mu.Unlock()

	handle.SetPDR(pdr)
	for _, n := range neighbors {
		c.connect(id, n)
	}
}

// connect wires a and b's handles to each other's links and records the
// topology edge, with no invariant check — used internally by AddDrone
// (initial wiring) and by the exported, invariant-checked AddConnection.
func (c *Controller) connect(a, b core.NodeID) {
	c.mu.Lock()
	c.ensureNodeLocked(a)
	c.ensureNodeLocked(b)
	c.topology[a][b] = struct{}{}
	c.topology[b][a] = struct{}{}
	ha, haOK := c.handles[a]
	hb, hbOK := c.handles[b]
	c.mu.Unlock()

	if haOK {
		if link, ok := c.bus.LinkTo(b); ok {
			ha.AddSender(b, link)
		}
	}
	if hbOK {
		if link, ok := c.bus.LinkTo(a); ok {
			hb.AddSender(a, link)
		}
	}
}

// AddConnection adds an edge between two already-registered nodes, rejecting
// it if it would push a client above its 1-2 drone link bound (spec.md
// §4.6). Server and drone endpoints have no upper bound.
func (c *Controller) AddConnection(a, b core.NodeID) error {
	c.mu.Lock()
	if !c.connectionValidLocked(a) || !c.connectionValidLocked(b) {
		c.mu.Unlock()
		return ErrDegreeInvariant
	}
	c.mu.Unlock()

	c.connect(a, b)
	c.out.Publish(Event{Kind: EventConnectionAdded, Node: a, Peer: b})
	return nil
}

func (c *Controller) connectionValidLocked(id core.NodeID) bool {
	kind, ok := c.kinds[id]
	if !ok {
		return false
	}
	switch kind {
	case core.KindClient:
		return len(c.topology[id]) < 2
	default: // KindServer, KindDrone: unconstrained
		return true
	}
}

// RemoveConnection removes the edge between a and b, rejecting it if doing
// so would disconnect the remaining graph (spec.md §4.6 "checked by DFS over
// a copy of the topology").
func (c *Controller) RemoveConnection(a, b core.NodeID) error {
	c.mu.Lock()
	if _, ok := c.topology[a]; !ok {
		c.mu.Unlock()
		return ErrUnknownNode
	}
	candidate := cloneTopology(c.topology)
	delete(candidate[a], b)
	delete(candidate[b], a)
	if !isConnected(candidate) {
		c.mu.Unlock()
		return ErrWouldDisconnect
	}
	delete(c.topology[a], b)
	delete(c.topology[b], a)
	ha, haOK := c.handles[a]
	hb, hbOK := c.handles[b]
	c.mu.Unlock()

	if haOK {
		ha.RemoveSender(b)
	}
	if hbOK {
		hb.RemoveSender(a)
	}
	c.out.Publish(Event{Kind: EventConnectionRemoved, Node: a, Peer: b})
	return nil
}

// SetPDR updates a drone's packet drop rate. PDR changes never affect
// topology, so there is no connectivity check (spec.md §4.6).
func (c *Controller) SetPDR(id core.NodeID, pdr float64) error {
	c.mu.Lock()
	handle, ok := c.drones[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: drone %d", ErrUnknownNode, id)
	}
	handle.SetPDR(pdr)
	c.out.Publish(Event{Kind: EventPDRSet, Node: id, PDR: pdr})
	return nil
}

// CrashDrone stops a drone and removes it from the topology, rejecting the
// crash if it would disconnect the remaining graph (spec.md §4.6).
func (c *Controller) CrashDrone(id core.NodeID) error {
	c.mu.Lock()
	handle, ok := c.drones[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: drone %d", ErrUnknownNode, id)
	}
	candidate := cloneTopology(c.topology)
	delete(candidate, id)
	for _, neighbors := range candidate {
		delete(neighbors, id)
	}
	if !isConnected(candidate) {
		c.mu.Unlock()
		return ErrWouldDisconnect
	}
	neighbors := make([]core.NodeID, 0, len(c.topology[id]))
	for n := range c.topology[id] {
		neighbors = append(neighbors, n)
	}
	c.mu.Unlock()

	handle.Crash()

	c.mu.Lock()
	for _, n := range neighbors {
		delete(c.topology[n], id)
	}
	delete(c.topology, id)
	delete(c.handles, id)
	delete(c.drones, id)
	delete(c.kinds, id)
	c.mu.Unlock()

	for _, n := range neighbors {
		if h, ok := c.handles[n]; ok {
			h.RemoveSender(id)
		}
	}
	c.out.Publish(Event{Kind: EventDroneCrashed, Node: id})
	return nil
}

// NodeKind reports the registered kind of id, or false if unknown. Used by
// the httpapi package to tag outgoing events with the node-type color class
// the original GUI's colored_data.rs used for its graph rendering — a
// data-shape carryover with no rendering code of its own in this core.
func (c *Controller) NodeKind(id core.NodeID) (core.Kind, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kind, ok := c.kinds[id]
	return kind, ok
}

// Topology returns a snapshot of the controller's authoritative adjacency,
// for the httpapi's GET /topology and CLI inspection commands.
func (c *Controller) Topology() map[core.NodeID][]core.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[core.NodeID][]core.NodeID, len(c.topology))
	for n, neighbors := range c.topology {
		ids := make([]core.NodeID, 0, len(neighbors))
		for neigh := range neighbors {
			ids = append(ids, neigh)
		}
		out[n] = ids
	}
	return out
}

func cloneTopology(topo map[core.NodeID]map[core.NodeID]struct{}) map[core.NodeID]map[core.NodeID]struct{} {
	out := make(map[core.NodeID]map[core.NodeID]struct{}, len(topo))
	for n, neighbors := range topo {
		ns := make(map[core.NodeID]struct{}, len(neighbors))
		for neigh := range neighbors {
			ns[neigh] = struct{}{}
		}
		out[n] = ns
	}
	return out
}

// isConnected reports whether topo forms a single connected component,
// mirroring simulation_controller.rs's is_network_connected: an empty graph
// is trivially connected.
func isConnected(topo map[core.NodeID]map[core.NodeID]struct{}) bool {
	if len(topo) == 0 {
		return true
	}
	var start core.NodeID
	for n := range topo {
		start = n
		break
	}
	visited := make(map[core.NodeID]bool)
	dfs(start, topo, visited)
	return len(visited) == len(topo)
}

func dfs(n core.NodeID, topo map[core.NodeID]map[core.NodeID]struct{}, visited map[core.NodeID]bool) {
	visited[n] = true
	for neighbor := range topo[n] {
		if !visited[neighbor] {
			dfs(neighbor, topo, visited)
		}
	}
}
