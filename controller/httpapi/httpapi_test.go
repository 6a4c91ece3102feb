package httpapi

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/transport"
)

type fakeHandle struct{}

func (fakeHandle) AddSender(core.NodeID, *transport.Link) {}
func (fakeHandle) RemoveSender(core.NodeID)               {}
func (fakeHandle) SetPDR(float64)                         {}
func (fakeHandle) Crash()                                 {}

func newTestServer() *Server {
	bus := transport.NewBus()
	bus.Register(1, 4)
	bus.Register(2, 4)
	events := make(chan controller.Event)
	ctrl := controller.New(controller.Config{Bus: bus}, events)
	ctrl.AddDrone(1, fakeHandle{}, nil, 0.1)
	ctrl.RegisterEndpoint(2, core.KindClient, fakeHandle{})
	return New(ctrl)
}

func TestHTTPAPI_GetTopology(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("GET", "/topology", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("got status %d", resp.StatusCode)
	}
}

func TestHTTPAPI_SetPDR_UnknownDroneReturnsConflict(t *testing.T) {
	s := newTestServer()
	body := bytes.NewBufferString(`{"pdr":0.5}`)
	req := httptest.NewRequest("POST", "/drones/99/pdr", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("got status %d, want 409", resp.StatusCode)
	}
}

func TestHTTPAPI_CrashDrone_InvalidID(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest("POST", "/drones/notanumber/crash", nil)
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
}
