package endpoint

import (
	"encoding/binary"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
	"github.com/dronemesh/overlay/core/dedupe"
	"github.com/dronemesh/overlay/core/topology"
	"github.com/dronemesh/overlay/transport"
)

// newID derives a uint64 session/flood identifier from a random UUIDv4,
// grounded in the teacher's use of github.com/google/uuid for message and
// contact identifiers — reused here in place of the original's
// rand::random::<u64>() since Go has no equivalent one-liner as idiomatic as
// a UUID-backed id in this codebase's surrounding style.
func newID() uint64 {
	u := uuid.New()
	return binary.LittleEndian.Uint64(u[:8])
}

// Discovery owns flood-based topology learning for one endpoint: issuing
// flood requests, answering them like a leaf, and folding flood responses
// into the local topology map (spec.md §4.2).
type Discovery struct {
	self  core.NodeID
	kind  core.Kind
	log   *slog.Logger
	topo  *topology.Map
	dedup *dedupe.Set
	// EndpointDedup controls whether this endpoint ignores a flood request
	// whose (flood_id, initiator) it has already seen instead of answering
	// it again. Open Question
	// (i) per spec.md §9: the source is inconsistent about whether
	// endpoints deduplicate the way drones do; the safe default — and the
	// one this package picks — is yes.
	EndpointDedup bool
}

// NewDiscovery creates a Discovery helper for an endpoint of the given kind.
func NewDiscovery(self core.NodeID, kind core.Kind, topo *topology.Map, log *slog.Logger) *Discovery {
	if log == nil {
		log = slog.Default()
	}
	return &Discovery{
		self:          self,
		kind:          kind,
		log:           log.With("node", self).WithGroup("discovery"),
		topo:          topo,
		dedup:         dedupe.New(),
		EndpointDedup: true,
	}
}

// Initiate broadcasts a fresh FloodRequest to every known neighbor link
// (spec.md §4.2 "Initiator ... sends one copy per neighbor channel").
func (d *Discovery) Initiate(neighbors []*transport.Link) uint64 {
	floodID := newID()
	req := codec.NewFloodRequest(newID(), floodID, d.self, d.kind)
	for _, link := range neighbors {
		_ = link.Send(req.Clone())
	}
	return floodID
}

// HandleFloodRequest answers a flood request the way a leaf drone would:
// respond along the reversed trace and never propagate further (spec.md
// §4.2). With EndpointDedup set, only the first request of each
// (flood_id, initiator) pair is answered; later duplicates get no response.
func (d *Discovery) HandleFloodRequest(pkt *codec.Packet, reply func(*codec.Packet) error) {
	key := dedupe.FloodKey{FloodID: pkt.FloodID, Initiator: uint8(pkt.Initiator)}
	alreadySeen := d.dedup.HasSeen(key)
	if d.EndpointDedup && alreadySeen {
		return
	}

	trace := append([]codec.PathTraceEntry(nil), pkt.PathTrace...)
	trace = append(trace, codec.PathTraceEntry{Node: d.self, Kind: d.kind})
	if len(trace) < 2 {
		return
	}
	withTrace := pkt.Clone()
	withTrace.PathTrace = trace
	resp := codec.NewFloodResponse(withTrace)
	if err := reply(resp); err != nil {
		d.log.Warn("flood response send failed", "err", err)
	}
}

// HandleFloodResponse folds a flood response's path trace into the local
// topology map (spec.md §4.2 "extract the list of node ids ... add
// undirected edge").
func (d *Discovery) HandleFloodResponse(pkt *codec.Packet) {
	for i := 0; i+1 < len(pkt.PathTrace); i++ {
		a, b := pkt.PathTrace[i], pkt.PathTrace[i+1]
		d.topo.AddEdge(a.Node, b.Node)
		d.topo.SetKind(a.Node, a.Kind)
		d.topo.SetKind(b.Node, b.Kind)
	}
}
