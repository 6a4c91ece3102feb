// Package codec implements the wire packet model shared by every node in the
// overlay mesh: the source-routing header, the fixed-width fragment layout,
// and the tagged-union Packet envelope (spec.md §3).
//
// This corresponds to the teacher's MeshCore Packet/Fragment codec, adapted
// from a single-hop-hash mesh header to a full ordered-hop source route.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/dronemesh/overlay/core"
)

// Kind is the packet's payload discriminant (spec.md §3 table).
type Kind uint8

const (
	KindMsgFragment Kind = iota
	KindAck
	KindNack
	KindFloodRequest
	KindFloodResponse
)

func (k Kind) String() string {
	switch k {
	case KindMsgFragment:
		return "MsgFragment"
	case KindAck:
		return "Ack"
	case KindNack:
		return "Nack"
	case KindFloodRequest:
		return "FloodRequest"
	case KindFloodResponse:
		return "FloodResponse"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// MaxPathSize bounds a source route's hop count, matching the teacher's
// MaxPathSize for flood path growth.
const MaxPathSize = 64

// NackReason enumerates the reasons a drone emits a Nack (spec.md §3/§7).
type NackReason uint8

const (
	NackDropped NackReason = iota
	NackErrorInRouting
	NackDestinationIsDrone
	NackUnexpectedRecipient
)

func (r NackReason) String() string {
	switch r {
	case NackDropped:
		return "Dropped"
	case NackErrorInRouting:
		return "ErrorInRouting"
	case NackDestinationIsDrone:
		return "DestinationIsDrone"
	case NackUnexpectedRecipient:
		return "UnexpectedRecipient"
	default:
		return fmt.Sprintf("UnknownReason(%d)", uint8(r))
	}
}

// SourceRoute is the ordered hop list carried by routed packets.
// Invariant (in transit): 1 <= HopIndex < len(Hops).
type SourceRoute struct {
	Hops     []core.NodeID
	HopIndex int
}

// Origin returns the first hop: the packet's originator.
func (r SourceRoute) Origin() core.NodeID { return r.Hops[0] }

// Destination returns the last hop: the packet's final recipient.
func (r SourceRoute) Destination() core.NodeID { return r.Hops[len(r.Hops)-1] }

// Current returns the hop this packet is addressed to right now.
func (r SourceRoute) Current() core.NodeID { return r.Hops[r.HopIndex] }

// Reversed returns a new route covering Hops[:HopIndex+1], reversed, with
// HopIndex reset to 1 — the standard shape for a Nack or Ack sent back along
// the path already traveled.
func (r SourceRoute) Reversed() SourceRoute {
	prefix := r.Hops[:r.HopIndex+1]
	rev := make([]core.NodeID, len(prefix))
	for i, h := range prefix {
		rev[len(prefix)-1-i] = h
	}
	return SourceRoute{Hops: rev, HopIndex: 1}
}

// Clone deep-copies the route.
func (r SourceRoute) Clone() SourceRoute {
	hops := make([]core.NodeID, len(r.Hops))
	copy(hops, r.Hops)
	return SourceRoute{Hops: hops, HopIndex: r.HopIndex}
}

// PathTraceEntry records one hop of a flood's accumulated path, including
// the node's kind so endpoints can learn server/client types along the way
// (spec.md §4.2).
type PathTraceEntry struct {
	Node core.NodeID
	Kind core.Kind
}

// Packet is the tagged-union wire envelope used by every node (spec.md §3).
// Only the fields relevant to Kind are populated; callers should use the
// Kind-specific constructors below rather than building a Packet by hand.
type Packet struct {
	SessionID uint64
	Kind      Kind

	// Populated for MsgFragment, Ack, Nack (routed packets) and
	// FloodResponse (after the response has been turned around).
	Route SourceRoute

	// MsgFragment payload.
	Fragment Fragment

	// Ack / Nack payload.
	AckFragmentIndex uint64
	NackReason       NackReason
	NackDetail       core.NodeID // populated for ErrorInRouting/UnexpectedRecipient

	// FloodRequest / FloodResponse payload.
	FloodID   uint64
	Initiator core.NodeID
	PathTrace []PathTraceEntry
}

// Clone returns a deep copy of the packet, safe to mutate independently
// (used before re-broadcasting a flood request, per spec.md §4.2).
func (p *Packet) Clone() *Packet {
	clone := *p
	clone.Route = p.Route.Clone()
	if p.PathTrace != nil {
		clone.PathTrace = make([]PathTraceEntry, len(p.PathTrace))
		copy(clone.PathTrace, p.PathTrace)
	}
	return &clone
}

// NewMsgFragment builds a routed MsgFragment packet.
func NewMsgFragment(sessionID uint64, route SourceRoute, frag Fragment) *Packet {
	return &Packet{SessionID: sessionID, Kind: KindMsgFragment, Route: route, Fragment: frag}
}

// NewAck builds a routed Ack packet acknowledging fragmentIndex.
func NewAck(sessionID uint64, route SourceRoute, fragmentIndex uint64) *Packet {
	return &Packet{SessionID: sessionID, Kind: KindAck, Route: route, AckFragmentIndex: fragmentIndex}
}

// NewNack builds a routed Nack packet for fragmentIndex with the given reason.
func NewNack(sessionID uint64, route SourceRoute, fragmentIndex uint64, reason NackReason, detail core.NodeID) *Packet {
	return &Packet{
		SessionID:        sessionID,
		Kind:             KindNack,
		Route:            route,
		AckFragmentIndex: fragmentIndex,
		NackReason:       reason,
		NackDetail:       detail,
	}
}

// NewFloodRequest builds an unrouted FloodRequest originated by initiator.
func NewFloodRequest(sessionID, floodID uint64, initiator core.NodeID, initiatorKind core.Kind) *Packet {
	return &Packet{
		SessionID: sessionID,
		Kind:      KindFloodRequest,
		FloodID:   floodID,
		Initiator: initiator,
		PathTrace: []PathTraceEntry{{Node: initiator, Kind: initiatorKind}},
	}
}

// NewFloodResponse turns around a FloodRequest's accumulated path trace into
// a routed FloodResponse addressed back to the initiator.
func NewFloodResponse(req *Packet) *Packet {
	hops := make([]core.NodeID, len(req.PathTrace))
	for i, e := range req.PathTrace {
		hops[len(req.PathTrace)-1-i] = e.Node
	}
	trace := make([]PathTraceEntry, len(req.PathTrace))
	copy(trace, req.PathTrace)
	return &Packet{
		SessionID: req.SessionID,
		Kind:      KindFloodResponse,
		FloodID:   req.FloodID,
		Initiator: req.Initiator,
		PathTrace: trace,
		Route:     SourceRoute{Hops: hops, HopIndex: 1},
	}
}

// WriteTo encodes the packet to its wire representation (spec.md §6).
// Layout: session_id(8) | kind(1) | kind-specific payload.
func (p *Packet) WriteTo() []byte {
	var buf []byte
	head := make([]byte, 9)
	binary.LittleEndian.PutUint64(head[0:8], p.SessionID)
	head[8] = byte(p.Kind)
	buf = append(buf, head...)

	switch p.Kind {
	case KindMsgFragment:
		buf = append(buf, encodeRoute(p.Route)...)
		buf = append(buf, p.Fragment.WriteTo()...)
	case KindAck:
		buf = append(buf, encodeRoute(p.Route)...)
		idx := make([]byte, 8)
		binary.LittleEndian.PutUint64(idx, p.AckFragmentIndex)
		buf = append(buf, idx...)
	case KindNack:
		buf = append(buf, encodeRoute(p.Route)...)
		idx := make([]byte, 10)
		binary.LittleEndian.PutUint64(idx[0:8], p.AckFragmentIndex)
		idx[8] = byte(p.NackReason)
		idx[9] = byte(p.NackDetail)
		buf = append(buf, idx...)
	case KindFloodRequest:
		buf = append(buf, encodeFloodHeader(p.FloodID, p.Initiator)...)
		buf = append(buf, encodeTrace(p.PathTrace)...)
	case KindFloodResponse:
		buf = append(buf, encodeFloodHeader(p.FloodID, p.Initiator)...)
		buf = append(buf, encodeTrace(p.PathTrace)...)
		buf = append(buf, encodeRoute(p.Route)...)
	}
	return buf
}

func encodeRoute(r SourceRoute) []byte {
	buf := make([]byte, 2+len(r.Hops))
	buf[0] = byte(r.HopIndex)
	buf[1] = byte(len(r.Hops))
	for i, h := range r.Hops {
		buf[2+i] = byte(h)
	}
	return buf
}

func decodeRoute(data []byte) (SourceRoute, int, error) {
	if len(data) < 2 {
		return SourceRoute{}, 0, ErrPacketTooShort
	}
	hopIndex := int(data[0])
	n := int(data[1])
	if n > MaxPathSize {
		return SourceRoute{}, 0, ErrPathTooLong
	}
	if len(data) < 2+n {
		return SourceRoute{}, 0, ErrPacketTooShort
	}
	hops := make([]core.NodeID, n)
	for i := 0; i < n; i++ {
		hops[i] = core.NodeID(data[2+i])
	}
	return SourceRoute{Hops: hops, HopIndex: hopIndex}, 2 + n, nil
}

func encodeFloodHeader(floodID uint64, initiator core.NodeID) []byte {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint64(buf[0:8], floodID)
	buf[8] = byte(initiator)
	return buf
}

func encodeTrace(trace []PathTraceEntry) []byte {
	buf := make([]byte, 1+2*len(trace))
	buf[0] = byte(len(trace))
	for i, e := range trace {
		buf[1+2*i] = byte(e.Node)
		buf[1+2*i+1] = byte(e.Kind)
	}
	return buf
}

func decodeTrace(data []byte) ([]PathTraceEntry, int, error) {
	if len(data) < 1 {
		return nil, 0, ErrPacketTooShort
	}
	n := int(data[0])
	if len(data) < 1+2*n {
		return nil, 0, ErrPacketTooShort
	}
	trace := make([]PathTraceEntry, n)
	for i := 0; i < n; i++ {
		trace[i] = PathTraceEntry{
			Node: core.NodeID(data[1+2*i]),
			Kind: core.Kind(data[1+2*i+1]),
		}
	}
	return trace, 1 + 2*n, nil
}

// ReadPacket decodes a packet from its wire representation.
func ReadPacket(data []byte) (*Packet, error) {
	if len(data) < 9 {
		return nil, ErrPacketTooShort
	}
	p := &Packet{
		SessionID: binary.LittleEndian.Uint64(data[0:8]),
		Kind:      Kind(data[8]),
	}
	rest := data[9:]

	switch p.Kind {
	case KindMsgFragment:
		route, n, err := decodeRoute(rest)
		if err != nil {
			return nil, err
		}
		p.Route = route
		frag, err := ReadFragment(rest[n:])
		if err != nil {
			return nil, err
		}
		p.Fragment = frag
	case KindAck:
		route, n, err := decodeRoute(rest)
		if err != nil {
			return nil, err
		}
		p.Route = route
		if len(rest) < n+8 {
			return nil, ErrPacketTooShort
		}
		p.AckFragmentIndex = binary.LittleEndian.Uint64(rest[n : n+8])
	case KindNack:
		route, n, err := decodeRoute(rest)
		if err != nil {
			return nil, err
		}
		p.Route = route
		if len(rest) < n+10 {
			return nil, ErrPacketTooShort
		}
		p.AckFragmentIndex = binary.LittleEndian.Uint64(rest[n : n+8])
		p.NackReason = NackReason(rest[n+8])
		p.NackDetail = core.NodeID(rest[n+9])
	case KindFloodRequest:
		if len(rest) < 9 {
			return nil, ErrPacketTooShort
		}
		p.FloodID = binary.LittleEndian.Uint64(rest[0:8])
		p.Initiator = core.NodeID(rest[8])
		trace, _, err := decodeTrace(rest[9:])
		if err != nil {
			return nil, err
		}
		p.PathTrace = trace
	case KindFloodResponse:
		if len(rest) < 9 {
			return nil, ErrPacketTooShort
		}
		p.FloodID = binary.LittleEndian.Uint64(rest[0:8])
		p.Initiator = core.NodeID(rest[8])
		trace, n, err := decodeTrace(rest[9:])
		if err != nil {
			return nil, err
		}
		p.PathTrace = trace
		route, _, err := decodeRoute(rest[9+n:])
		if err != nil {
			return nil, err
		}
		p.Route = route
	default:
		return nil, ErrUnknownKind
	}
	return p, nil
}
