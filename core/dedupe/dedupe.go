// Package dedupe provides the flood de-duplication set used by drones (and
// optionally endpoints) to process each (flood_id, initiator) pair at most
// once (spec.md §3 "Flood de-dup set", §4.2, §8 invariant 4).
//
// This corresponds to the teacher's core/dedupe circular-hash-table
// PacketDeduplicator, adapted from a fixed-capacity circular buffer to an
// expiring cache: a flood round has a natural lifetime (the time it takes to
// traverse the mesh and return), so entries age out instead of being evicted
// only by table-size pressure. This keeps a long-running simulation's memory
// bounded without tuning a table size up front.
package dedupe

import (
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a (flood_id, initiator) pair is remembered. It
// should comfortably exceed the time a flood takes to cross the mesh and
// return, so a duplicate arriving late is still recognized.
const DefaultTTL = 30 * time.Second

// cleanupInterval controls how often go-cache sweeps expired entries.
const cleanupInterval = time.Minute

// FloodKey identifies a flood round (spec.md §3).
type FloodKey struct {
	FloodID   uint64
	Initiator uint8
}

func (k FloodKey) string() string {
	return fmt.Sprintf("%d:%d", k.FloodID, k.Initiator)
}

// Set tracks recently seen flood rounds.
type Set struct {
	c *cache.Cache
}

// New creates a Set with the default TTL.
func New() *Set {
	return NewWithTTL(DefaultTTL)
}

// NewWithTTL creates a Set with a custom entry lifetime.
func NewWithTTL(ttl time.Duration) *Set {
	return &Set{c: cache.New(ttl, cleanupInterval)}
}

// HasSeen reports whether key was already marked, and marks it if not
// (spec.md §3 invariant: each pair is processed at most once per node).
func (s *Set) HasSeen(key FloodKey) bool {
	k := key.string()
	if _, found := s.c.Get(k); found {
		return true
	}
	s.c.SetDefault(k, struct{}{})
	return false
}

// Clear forgets every previously seen flood round.
func (s *Set) Clear() {
	s.c.Flush()
}

// Len returns the number of currently tracked flood rounds (including ones
// not yet expired by the cleanup sweep).
func (s *Set) Len() int {
	return s.c.ItemCount()
}
