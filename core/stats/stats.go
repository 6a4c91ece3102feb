// Package stats provides the per-node packet counters (SPEC_FULL.md §12.2).
// Each drone keeps one NodeStats and exposes it as a read-only Snapshot
// through Drone.Stats(); endpoints and the controller do not expose any.
//
// Grounded in original_source/codice/simulation_controller/src/node_stats.rs's
// DroneStats, adapted from a plain struct incremented under the owning
// actor's single-writer discipline into atomic counters matching the
// teacher's device/router.RouterCounters idiom (atomic.Uint32 fields plus a
// Snapshot() value-copy method) — atomics let the controller read a node's
// stats from a different goroutine without taking the node's own lock.
package stats

import "sync/atomic"

// NodeStats tracks packet-level counters for a single drone or endpoint.
// All fields are safe for concurrent access.
type NodeStats struct {
	PacketsForwarded        atomic.Uint64
	PacketsDropped          atomic.Uint64
	FragmentsForwarded      atomic.Uint64
	FloodRequestsForwarded  atomic.Uint64
	FloodResponsesForwarded atomic.Uint64
	AcksForwarded           atomic.Uint64
	NacksForwarded          atomic.Uint64
	Crashed                 atomic.Bool
}

// New creates a zeroed NodeStats.
func New() *NodeStats {
	return &NodeStats{}
}

// Snapshot is a plain-value, point-in-time copy of NodeStats for reading
// without holding any lock (node_stats.rs's DroneStats, stripped of its
// embedded packets_sent log — the event stream already carries individual
// packets to anyone who wants that detail).
type Snapshot struct {
	PacketsForwarded        uint64
	PacketsDropped          uint64
	FragmentsForwarded      uint64
	FloodRequestsForwarded  uint64
	FloodResponsesForwarded uint64
	AcksForwarded           uint64
	NacksForwarded          uint64
	Crashed                 bool
}

// Snapshot returns a copy of every counter. Each counter is loaded
// atomically, one after another; the set is not read under a common lock.
func (s *NodeStats) Snapshot() Snapshot {
	return Snapshot{
		PacketsForwarded:        s.PacketsForwarded.Load(),
		PacketsDropped:          s.PacketsDropped.Load(),
		FragmentsForwarded:      s.FragmentsForwarded.Load(),
		FloodRequestsForwarded:  s.FloodRequestsForwarded.Load(),
		FloodResponsesForwarded: s.FloodResponsesForwarded.Load(),
		AcksForwarded:           s.AcksForwarded.Load(),
		NacksForwarded:          s.NacksForwarded.Load(),
		Crashed:                 s.Crashed.Load(),
	}
}
