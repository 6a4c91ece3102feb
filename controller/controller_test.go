package controller

import (
	"context"
	"testing"
	"time"

	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/core/codec"
	"github.com/dronemesh/overlay/transport"
)

// fakeHandle records every command the controller sends it, standing in for
// the adapters the wiring layer builds over *drone.Drone / *endpoint.Engine.
type fakeHandle struct {
	added   []core.NodeID
	removed []core.NodeID
	pdr     float64
	crashed bool
}

func (f *fakeHandle) AddSender(id core.NodeID, _ *transport.Link) { f.added = append(f.added, id) }
func (f *fakeHandle) RemoveSender(id core.NodeID)                 { f.removed = append(f.removed, id) }
func (f *fakeHandle) SetPDR(pdr float64)                          { f.pdr = pdr }
func (f *fakeHandle) Crash()                                      { f.crashed = true }

func newTestController(bus *transport.Bus) *Controller {
	events := make(chan Event)
	return New(Config{Bus: bus}, events)
}

func TestController_AddDroneWiresNeighbors(t *testing.T) {
	bus := transport.NewBus()
	bus.Register(1, 4)
	bus.Register(2, 4)
	bus.Register(3, 4)
	c := newTestController(bus)

	n1 := &fakeHandle{}
	n2 := &fakeHandle{}
	drone := &fakeHandle{}
	c.RegisterEndpoint(1, core.KindClient, n1)
	c.RegisterEndpoint(2, core.KindServer, n2)

	c.AddDrone(3, drone, []core.NodeID{1, 2}, 0.1)

	if drone.pdr != 0.1 {
		t.Fatalf("got pdr %v, want 0.1", drone.pdr)
	}
	if len(drone.added) != 2 {
		t.Fatalf("expected drone to gain 2 senders, got %v", drone.added)
	}
	if len(n1.added) != 1 || n1.added[0] != 3 {
		t.Fatalf("expected client to gain drone sender, got %v", n1.added)
	}
	if len(n2.added) != 1 || n2.added[0] != 3 {
		t.Fatalf("expected server to gain drone sender, got %v", n2.added)
	}
}

func TestController_AddConnection_RejectsClientDegreeOverflow(t *testing.T) {
	bus := transport.NewBus()
	for _, id := range []core.NodeID{1, 2, 3, 4} {
		bus.Register(id, 4)
	}
	c := newTestController(bus)

	client := &fakeHandle{}
	c.RegisterEndpoint(1, core.KindClient, client)
	c.AddDrone(2, &fakeHandle{}, []core.NodeID{1}, 0)
	c.AddDrone(3, &fakeHandle{}, []core.NodeID{1}, 0)
	c.AddDrone(4, &fakeHandle{}, nil, 0)

	if err := c.AddConnection(1, 4); err != ErrDegreeInvariant {
		t.Fatalf("got %v, want ErrDegreeInvariant", err)
	}
}

func TestController_RemoveConnection_RejectsWhenWouldDisconnect(t *testing.T) {
	bus := transport.NewBus()
	for _, id := range []core.NodeID{1, 2, 3} {
		bus.Register(id, 4)
	}
	c := newTestController(bus)
	c.AddDrone(1, &fakeHandle{}, nil, 0)
	c.AddDrone(2, &fakeHandle{}, []core.NodeID{1}, 0)
	c.AddDrone(3, &fakeHandle{}, []core.NodeID{2}, 0)
	// topology is a line 1-2-3; removing 2-3 would strand node 3
	if err := c.RemoveConnection(2, 3); err != ErrWouldDisconnect {
		t.Fatalf("got %v, want ErrWouldDisconnect", err)
	}
}

func TestController_RemoveConnection_AllowedWithRedundantPath(t *testing.T) {
	bus := transport.NewBus()
	for _, id := range []core.NodeID{1, 2, 3} {
		bus.Register(id, 4)
	}
	c := newTestController(bus)
	c.AddDrone(1, &fakeHandle{}, nil, 0)
	c.AddDrone(2, &fakeHandle{}, []core.NodeID{1}, 0)
	c.AddDrone(3, &fakeHandle{}, []core.NodeID{1, 2}, 0)
	// triangle 1-2-3: removing 2-3 still leaves 1 connecting both
	if err := c.RemoveConnection(2, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestController_CrashDrone_RejectsWhenWouldDisconnect(t *testing.T) {
	bus := transport.NewBus()
	for _, id := range []core.NodeID{1, 2, 3} {
		bus.Register(id, 4)
	}
	c := newTestController(bus)
	c.AddDrone(1, &fakeHandle{}, nil, 0)
	c.AddDrone(2, &fakeHandle{}, []core.NodeID{1}, 0)
	c.AddDrone(3, &fakeHandle{}, []core.NodeID{2}, 0)

	if err := c.CrashDrone(2); err != ErrWouldDisconnect {
		t.Fatalf("got %v, want ErrWouldDisconnect", err)
	}
}

func TestController_CrashDrone_NotifiesNeighbors(t *testing.T) {
	bus := transport.NewBus()
	for _, id := range []core.NodeID{1, 2, 3, 4} {
		bus.Register(id, 4)
	}
	c := newTestController(bus)
	h1 := &fakeHandle{}
	h3 := &fakeHandle{}
	drone := &fakeHandle{}
	c.RegisterEndpoint(1, core.KindClient, h1)
	c.RegisterEndpoint(3, core.KindServer, h3)
	c.AddDrone(2, drone, []core.NodeID{1, 3}, 0)
	// drone 4 keeps 1 and 3 connected once 2 is gone
	c.AddDrone(4, &fakeHandle{}, []core.NodeID{1, 3}, 0)

	if err := c.CrashDrone(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !drone.crashed {
		t.Fatal("expected drone.Crash() to be called")
	}
	if len(h1.removed) != 1 || h1.removed[0] != 2 {
		t.Fatalf("expected neighbor 1 to remove sender 2, got %v", h1.removed)
	}
	if len(h3.removed) != 1 || h3.removed[0] != 2 {
		t.Fatalf("expected neighbor 3 to remove sender 2, got %v", h3.removed)
	}
	if err := c.SetPDR(2, 0.5); err == nil {
		t.Fatal("expected error setting pdr on a crashed drone")
	}
}

func TestController_SetPDR_UnknownDrone(t *testing.T) {
	c := newTestController(transport.NewBus())
	if err := c.SetPDR(99, 0.5); err == nil {
		t.Fatal("expected error for unknown drone")
	}
}

func TestController_Run_DeliversShortcutPacket(t *testing.T) {
	bus := transport.NewBus()
	dest := bus.Register(9, 4)

	events := make(chan Event, 1)
	c := New(Config{Bus: bus}, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	route := codec.SourceRoute{Hops: []core.NodeID{5, 9}, HopIndex: 1}
	pkt := codec.NewAck(1, route, 0)
	events <- Event{Kind: EventControllerShortcut, Node: 5, Packet: pkt}

	select {
	case got := <-dest.Recv():
		if got.SessionID != 1 {
			t.Fatalf("got session %d, want 1", got.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shortcut delivery")
	}
}
