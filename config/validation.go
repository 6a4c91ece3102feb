package config

import (
	"fmt"

	"github.com/dronemesh/overlay/core"
)

// Validate applies every rule spec.md §6 lists: unique ids, pdr in [0,1],
// no self-loops, no duplicate neighbor entries, client 1-2 drone neighbors,
// server >=2 drone neighbors, bidirectional adjacency, single connected
// component. Grounded in validation.rs's validate_config, with the same
// rule order (per-node checks first, then the whole-graph checks).
func Validate(cfg *NetworkConfig) error {
	seen := make(map[core.NodeID]bool)

	for _, d := range cfg.Drone {
		if seen[d.ID] {
			return fmt.Errorf("config: duplicate node id %d", d.ID)
		}
		seen[d.ID] = true
		if containsID(d.Neighbors, d.ID) {
			return fmt.Errorf("config: drone %d is connected to itself", d.ID)
		}
		if hasDuplicate(d.Neighbors) {
			return fmt.Errorf("config: drone %d has duplicate connections", d.ID)
		}
		if d.PDR < 0 || d.PDR > 1 {
			return fmt.Errorf("config: drone %d has invalid pdr %v", d.ID, d.PDR)
		}
	}

	drones := make(map[core.NodeID]bool, len(cfg.Drone))
	for _, d := range cfg.Drone {
		drones[d.ID] = true
	}

	for _, c := range cfg.Client {
		if seen[c.ID] {
			return fmt.Errorf("config: duplicate node id %d", c.ID)
		}
		seen[c.ID] = true
		if len(c.Neighbors) < 1 || len(c.Neighbors) > 2 {
			return fmt.Errorf("config: client %d must be connected to 1 or 2 drones", c.ID)
		}
		if hasDuplicate(c.Neighbors) {
			return fmt.Errorf("config: client %d has duplicate connections", c.ID)
		}
		for _, n := range c.Neighbors {
			if !drones[n] {
				return fmt.Errorf("config: client %d is connected to non-drone node %d", c.ID, n)
			}
		}
	}

	for _, s := range cfg.Server {
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate node id %d", s.ID)
		}
		seen[s.ID] = true
		if len(s.Neighbors) < 2 {
			return fmt.Errorf("config: server %d must be connected to at least 2 drones", s.ID)
		}
		if hasDuplicate(s.Neighbors) {
			return fmt.Errorf("config: server %d has duplicate connections", s.ID)
		}
		for _, n := range s.Neighbors {
			if !drones[n] {
				return fmt.Errorf("config: server %d is connected to non-drone node %d", s.ID, n)
			}
		}
		if !validServerKind(s.Kind) {
			return fmt.Errorf("config: server %d has unknown kind %q", s.ID, s.Kind)
		}
	}

	return validateGraph(cfg)
}

func validServerKind(kind string) bool {
	switch kind {
	case "text", "media", "chat":
		return true
	default:
		return false
	}
}

func containsID(ids []core.NodeID, target core.NodeID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}

func hasDuplicate(ids []core.NodeID) bool {
	set := make(map[core.NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
		set[id] = struct{}{}
	}
	return false
}

// adjacency builds the full node -> neighbor-list map across all three
// sections (validation.rs's build_adjacency_list).
func adjacency(cfg *NetworkConfig) map[core.NodeID][]core.NodeID {
	adj := make(map[core.NodeID][]core.NodeID)
	for _, d := range cfg.Drone {
		adj[d.ID] = d.Neighbors
	}
	for _, c := range cfg.Client {
		adj[c.ID] = c.Neighbors
	}
	for _, s := range cfg.Server {
		adj[s.ID] = s.Neighbors
	}
	return adj
}

func validateGraph(cfg *NetworkConfig) error {
	adj := adjacency(cfg)

	for node, neighbors := range adj {
		for _, neighbor := range neighbors {
			if !containsID(adj[neighbor], node) {
				return fmt.Errorf("config: connection not bidirectional: %d connects to %d but not vice versa", node, neighbor)
			}
		}
	}

	if len(adj) == 0 {
		return nil
	}

	visited := make(map[core.NodeID]bool)
	var start core.NodeID
	for id := range adj {
		start = id
		break
	}
	queue := []core.NodeID{start}
	visited[start] = true
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, neighbor := range adj[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	var disconnected []core.NodeID
	for id := range adj {
		if !visited[id] {
			disconnected = append(disconnected, id)
		}
	}
	if len(disconnected) > 0 {
		return fmt.Errorf("config: network is not fully connected, disconnected nodes: %v", disconnected)
	}
	return nil
}
