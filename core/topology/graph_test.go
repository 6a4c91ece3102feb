package topology

import (
	"reflect"
	"testing"

	"github.com/dronemesh/overlay/core"
)

func buildChain(t *testing.T) *Map {
	t.Helper()
	m := New(nil)
	// C1 - D2 - D3 - S4
	m.AddEdge(1, 2)
	m.AddEdge(2, 3)
	m.AddEdge(3, 4)
	return m
}

func TestShortestPath_Chain(t *testing.T) {
	m := buildChain(t)
	path, err := m.ShortestPath(1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []core.NodeID{1, 2, 3, 4}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
}

func TestShortestPath_RouteValidity(t *testing.T) {
	m := New(nil)
	m.AddEdge(1, 2)
	m.AddEdge(2, 3)
	m.AddEdge(1, 5)
	m.AddEdge(5, 3)
	m.AddEdge(3, 4)

	path, err := m.ShortestPath(1, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path[0] != 1 || path[len(path)-1] != 4 {
		t.Fatalf("path must start at src and end at dst: %v", path)
	}
	for i := 0; i < len(path)-1; i++ {
		if !m.HasEdge(path[i], path[i+1]) {
			t.Fatalf("edge (%d,%d) not in graph", path[i], path[i+1])
		}
	}
}

func TestShortestPath_NoRoute(t *testing.T) {
	m := New(nil)
	m.AddEdge(1, 2)
	m.AddEdge(3, 4)
	if _, err := m.ShortestPath(1, 4); err == nil {
		t.Fatal("expected no-route error for disconnected graph")
	}
}

func TestRemoveNode_DropsEdges(t *testing.T) {
	m := buildChain(t)
	m.RemoveNode(2)
	if m.HasEdge(1, 2) || m.HasEdge(2, 3) {
		t.Fatal("removing a node must drop all its edges")
	}
	if _, err := m.ShortestPath(1, 4); err == nil {
		t.Fatal("removing the sole relay should disconnect src from dst")
	}
}

func TestAddEdge_Bidirectional(t *testing.T) {
	m := New(nil)
	m.AddEdge(1, 2)
	if !m.HasEdge(1, 2) || !m.HasEdge(2, 1) {
		t.Fatal("edges must be recorded in both directions")
	}
}
