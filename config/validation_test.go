package config

import (
	"testing"

	"github.com/dronemesh/overlay/core"
)

func validTopology() *NetworkConfig {
	cfg := &NetworkConfig{
		Drone: []DroneConfig{
			{ID: 2, Neighbors: []core.NodeID{1, 3, 4}, PDR: 0.1},
			{ID: 4, Neighbors: []core.NodeID{2, 3}, PDR: 0.2},
		},
		Client: []ClientConfig{
			{ID: 1, Neighbors: []core.NodeID{2}},
		},
		Server: []ServerConfig{
			{ID: 3, Neighbors: []core.NodeID{2, 4}, Kind: "text"},
		},
	}
	return cfg
}

func TestValidate_AcceptsWellFormedTopology(t *testing.T) {
	if err := Validate(validTopology()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsDuplicateID(t *testing.T) {
	cfg := validTopology()
	cfg.Client = append(cfg.Client, ClientConfig{ID: 2, Neighbors: []core.NodeID{4}})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for duplicate node id")
	}
}

func TestValidate_RejectsSelfLoop(t *testing.T) {
	cfg := validTopology()
	cfg.Drone[0].Neighbors = append(cfg.Drone[0].Neighbors, cfg.Drone[0].ID)
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for drone self-loop")
	}
}

func TestValidate_RejectsBadPDR(t *testing.T) {
	cfg := validTopology()
	cfg.Drone[0].PDR = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for pdr out of range")
	}
}

func TestValidate_RejectsClientWithThreeDrones(t *testing.T) {
	cfg := validTopology()
	cfg.Client[0].Neighbors = []core.NodeID{2, 4, 9}
	cfg.Drone = append(cfg.Drone, DroneConfig{ID: 9, Neighbors: []core.NodeID{1}, PDR: 0})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for client with 3 drone neighbors")
	}
}

func TestValidate_RejectsServerWithOneDrone(t *testing.T) {
	cfg := validTopology()
	cfg.Server[0].Neighbors = []core.NodeID{2}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for server with fewer than 2 drone neighbors")
	}
}

func TestValidate_RejectsNonBidirectionalEdge(t *testing.T) {
	cfg := &NetworkConfig{
		Drone: []DroneConfig{
			{ID: 2, Neighbors: []core.NodeID{1, 3, 9}, PDR: 0.1},
			{ID: 4, Neighbors: []core.NodeID{2, 3}, PDR: 0.2}, // claims 3, not reciprocated
			{ID: 9, Neighbors: []core.NodeID{2, 3}, PDR: 0},
		},
		Client: []ClientConfig{
			{ID: 1, Neighbors: []core.NodeID{2}},
		},
		Server: []ServerConfig{
			{ID: 3, Neighbors: []core.NodeID{2, 9}, Kind: "text"}, // doesn't list 4 back
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-reciprocated edge")
	}
}

func TestValidate_RejectsDisconnectedGraph(t *testing.T) {
	cfg := validTopology()
	cfg.Drone = append(cfg.Drone, DroneConfig{ID: 5, Neighbors: nil, PDR: 0})
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for disconnected component")
	}
}

func TestValidate_RejectsUnknownServerKind(t *testing.T) {
	cfg := validTopology()
	cfg.Server[0].Kind = "gopher"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown server kind")
	}
}
