package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/dronemesh/overlay/config"
	"github.com/dronemesh/overlay/core"
)

func smallTopology() *config.NetworkConfig {
	return &config.NetworkConfig{
		Drone: []config.DroneConfig{
			{ID: 10, Neighbors: []core.NodeID{1, 2, 20}, PDR: 0},
			{ID: 20, Neighbors: []core.NodeID{10, 2}, PDR: 0},
		},
		Client: []config.ClientConfig{
			{ID: 1, Neighbors: []core.NodeID{10}},
		},
		Server: []config.ServerConfig{
			{ID: 2, Kind: "text", Neighbors: []core.NodeID{10, 20}},
		},
	}
}

func TestSimulation_BuildWiresEveryNode(t *testing.T) {
	m, err := Build(smallTopology(), nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(m.drones) != 2 {
		t.Fatalf("got %d drones, want 2", len(m.drones))
	}
	if len(m.endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(m.endpoints))
	}
}

func TestSimulation_RunStopsOnContextCancel(t *testing.T) {
	m, err := Build(smallTopology(), nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mesh did not stop after context cancel")
	}
}
