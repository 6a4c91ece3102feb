package transport

import (
	"testing"

	"github.com/dronemesh/overlay/core/codec"
)

func TestBus_LinkTo_SendAndRecv(t *testing.T) {
	bus := NewBus()
	mb := bus.Register(2, 4)

	link, ok := bus.LinkTo(2)
	if !ok {
		t.Fatal("expected link to registered mailbox")
	}

	pkt := &codec.Packet{SessionID: 1, Kind: codec.KindAck, AckFragmentIndex: 0}
	if err := link.Send(pkt); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	select {
	case got := <-mb.Recv():
		if got.SessionID != 1 {
			t.Fatalf("got session %d, want 1", got.SessionID)
		}
	default:
		t.Fatal("expected packet to be delivered")
	}
}

func TestBus_LinkTo_UnknownNeighbor(t *testing.T) {
	bus := NewBus()
	if _, ok := bus.LinkTo(99); ok {
		t.Fatal("expected no link for unregistered neighbor")
	}
}

func TestBus_Unregister_ClosesLink(t *testing.T) {
	bus := NewBus()
	bus.Register(3, 4)
	link, _ := bus.LinkTo(3)

	bus.Unregister(3)

	if err := link.Send(&codec.Packet{}); err != ErrLinkClosed {
		t.Fatalf("expected ErrLinkClosed after unregister, got %v", err)
	}
	if _, ok := bus.LinkTo(3); ok {
		t.Fatal("unregistered neighbor should not resolve a new link")
	}
}

func TestMailbox_FullBufferReturnsError(t *testing.T) {
	mb := NewMailbox(1)
	if err := mb.deliver(&codec.Packet{}); err != nil {
		t.Fatalf("unexpected error on first send: %v", err)
	}
	if err := mb.deliver(&codec.Packet{}); err != ErrLinkFull {
		t.Fatalf("expected ErrLinkFull on saturated buffer, got %v", err)
	}
}
