// Package controller implements the simulation controller (spec.md §4.6):
// topology mutation commands, the client-visible event stream, and the
// invariants that guard every mutation (connectivity, degree bounds).
//
// Grounded in original_source/codice/simulation_controller/src/simulation_controller.rs
// and forwarded_event.rs, stripped of the petgraph/egui_graphs rendering
// layer (colored_data.rs) that has no home in a headless core.
package controller

import (
	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
)

// EventKind discriminates the controller event stream (spec.md §6 "Events").
type EventKind int

const (
	EventPacketSent EventKind = iota
	EventPacketDropped
	EventControllerShortcut
	EventPDRSet
	EventDroneCrashed
	EventConnectionAdded
	EventConnectionRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventPacketSent:
		return "PacketSent"
	case EventPacketDropped:
		return "PacketDropped"
	case EventControllerShortcut:
		return "ControllerShortcut"
	case EventPDRSet:
		return "PDRSet"
	case EventDroneCrashed:
		return "DroneCrashed"
	case EventConnectionAdded:
		return "ConnectionAdded"
	case EventConnectionRemoved:
		return "ConnectionRemoved"
	default:
		return "Unknown"
	}
}

// Event is a single item on the controller's event stream. Fields not
// relevant to Kind are left zero; this mirrors the original's tagged-union
// ForwardedEvent enum flattened into one Go struct for a single channel type.
type Event struct {
	Kind   EventKind
	Node   core.NodeID // the node that sent/dropped/crashed, or the PDRSet target
	Peer   core.NodeID // second node of a connection pair
	PDR    float64
	Packet *codec.Packet
}

// PacketSentEvent reports a packet successfully handed to a neighbor link.
func PacketSentEvent(node core.NodeID, pkt *codec.Packet) Event {
	return Event{Kind: EventPacketSent, Node: node, Packet: pkt}
}

// PacketDroppedEvent reports a MsgFragment dropped by the PDR roll
// (spec.md §4.1 "probabilistic drop").
func PacketDroppedEvent(node core.NodeID, pkt *codec.Packet) Event {
	return Event{Kind: EventPacketDropped, Node: node, Packet: pkt}
}

// ShortcutEvent reports a controller-mediated direct delivery bypassing the
// mesh entirely (spec.md §4.6 "ControllerShortcut"), published by an endpoint
// that has no link to the first hop of an ack or flood response it sends.
func ShortcutEvent(node core.NodeID, pkt *codec.Packet) Event {
	return Event{Kind: EventControllerShortcut, Node: node, Packet: pkt}
}
