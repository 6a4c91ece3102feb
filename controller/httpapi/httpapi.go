// Package httpapi is the simulation controller's external control surface
// (SPEC_FULL.md §11 domain stack): a REST surface for topology mutation and
// a WebSocket stream of the controller's event feed. This is the Go-native
// analogue of the Rust GUI's ui_commands.rs control panel and
// packet_animation.rs live view, referenced in original_source but out of
// scope as a GUI per spec.md's Non-goals — only the transport plumbing a UI
// would consume is in scope here.
package httpapi

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/core"
)

// Server wraps a *fiber.App exposing the controller's mutation commands and
// event stream over HTTP.
type Server struct {
	app  *fiber.App
	ctrl *controller.Controller
}

// New builds a Server routed against ctrl. Call Listen to serve it.
func New(ctrl *controller.Controller) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	s := &Server{app: app, ctrl: ctrl}
	s.routes()
	return s
}

// App returns the underlying fiber.App, for tests that exercise routes via
// app.Test without binding a real listener.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts serving on addr. Blocks until the listener stops.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) routes() {
	s.app.Get("/topology", s.getTopology)
	s.app.Post("/drones/:id/crash", s.crashDrone)
	s.app.Post("/drones/:id/pdr", s.setPDR)
	s.app.Post("/connections", s.addConnection)
	s.app.Delete("/connections", s.removeConnection)

	s.app.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/events", websocket.New(s.streamEvents))
}

func (s *Server) getTopology(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Topology())
}

func parseNodeID(c *fiber.Ctx) (core.NodeID, error) {
	n, err := strconv.ParseUint(c.Params("id"), 10, 8)
	if err != nil {
		return 0, err
	}
	return core.NodeID(n), nil
}

func (s *Server) crashDrone(c *fiber.Ctx) error {
	id, err := parseNodeID(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	if err := s.ctrl.CrashDrone(id); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type setPDRRequest struct {
	PDR float64 `json:"pdr"`
}

func (s *Server) setPDR(c *fiber.Ctx) error {
	id, err := parseNodeID(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid drone id")
	}
	var req setPDRRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.ctrl.SetPDR(id, req.PDR); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type connectionRequest struct {
	A core.NodeID `json:"a"`
	B core.NodeID `json:"b"`
}

func (s *Server) addConnection(c *fiber.Ctx) error {
	var req connectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.ctrl.AddConnection(req.A, req.B); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) removeConnection(c *fiber.Ctx) error {
	var req connectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := s.ctrl.RemoveConnection(req.A, req.B); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// streamEvents pushes every controller event to the connected WebSocket
// client as JSON, the Go-native analogue of the Rust GUI's live packet
// animation.
func (s *Server) streamEvents(c *websocket.Conn) {
	defer c.Close()
	for ev := range s.ctrl.Events() {
		if err := c.WriteJSON(eventView{
			Kind:  ev.Kind.String(),
			Node:  ev.Node,
			Peer:  ev.Peer,
			PDR:   ev.PDR,
			Color: nodeColor(s.ctrl, ev.Node),
		}); err != nil {
			return
		}
	}
}

// eventView is the wire shape for a controller.Event, dropping the raw
// *codec.Packet field that has no stable JSON encoding of its own.
type eventView struct {
	Kind  string      `json:"kind"`
	Node  core.NodeID `json:"node"`
	Peer  core.NodeID `json:"peer,omitempty"`
	PDR   float64     `json:"pdr,omitempty"`
	Color string      `json:"color"`
}

// nodeColor maps a node's kind to the RGB hex string the original Rust GUI's
// colored_data.rs assigned per NodeType (drone blue, client red, server
// green), for a UI collaborator to render the same palette without any
// rendering code living in this core.
func nodeColor(ctrl *controller.Controller, id core.NodeID) string {
	kind, ok := ctrl.NodeKind(id)
	if !ok {
		return ""
	}
	switch kind {
	case core.KindDrone:
		return "#0000ff"
	case core.KindClient:
		return "#ff0000"
	case core.KindServer:
		return "#00ff00"
	default:
		return ""
	}
}
