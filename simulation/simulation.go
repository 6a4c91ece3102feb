// Package simulation wires a validated config.NetworkConfig into a running
// mesh: it builds the transport bus, constructs one drone or endpoint node
// per config entry, registers each with the controller, and supervises every
// node goroutine plus the controller goroutine with an errgroup (SPEC_FULL.md
// §11). There is no Shutdown method: the mesh stops when the context passed
// to Run is cancelled.
//
// This package exists specifically to avoid an import cycle: node/drone and
// node/endpoint both import controller for the Sink/NodeHandle contract, so
// controller itself cannot import them back. simulation sits above all
// three and does the concrete wiring neither lower package can do itself.
package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dronemesh/overlay/config"
	"github.com/dronemesh/overlay/controller"
	"github.com/dronemesh/overlay/core"
	"github.com/dronemesh/overlay/node/drone"
	"github.com/dronemesh/overlay/node/endpoint"
	"github.com/dronemesh/overlay/transport"
)

// Mesh is a fully wired, runnable simulation: every node from a
// config.NetworkConfig plus the controller that governs them.
type Mesh struct {
	log  *slog.Logger
	bus  *transport.Bus
	ctrl *controller.Controller

	drones    map[core.NodeID]*drone.Drone
	endpoints map[core.NodeID]*endpoint.Engine
}

// Build constructs a Mesh from cfg without starting any goroutines. Run
// starts it.
func Build(cfg *config.NetworkConfig, log *slog.Logger) (*Mesh, error) {
	if log == nil {
		log = slog.Default()
	}
	bus := transport.NewBus()
	events := controller.NewEventBus(512)
	ctrl := controller.New(controller.Config{Logger: log, Bus: bus}, events.Events())

	m := &Mesh{
		log:       log,
		bus:       bus,
		ctrl:      ctrl,
		drones:    make(map[core.NodeID]*drone.Drone),
		endpoints: make(map[core.NodeID]*endpoint.Engine),
	}

	for _, d := range cfg.Drone {
		mb := bus.Register(d.ID, transport.DefaultBuffer)
		nd := drone.New(drone.Config{
			SelfID: d.ID,
			PDR:    d.PDR,
			Logger: log,
			Events: events,
		}, mb)
		m.drones[d.ID] = nd
	}

	for _, c := range cfg.Client {
		mb := bus.Register(c.ID, transport.DefaultBuffer)
		client := endpoint.NewClient(nil)
		eng := endpoint.New(endpoint.Config{
			SelfID:  c.ID,
			Kind:    core.KindClient,
			Handler: client,
			Logger:  log,
			Events:  events,
		}, mb)
		m.endpoints[c.ID] = eng
	}

	for _, s := range cfg.Server {
		mb := bus.Register(s.ID, transport.DefaultBuffer)
		handler, err := buildServerHandler(s, m)
		if err != nil {
			return nil, err
		}
		eng := endpoint.New(endpoint.Config{
			SelfID:  s.ID,
			Kind:    core.KindServer,
			Handler: handler,
			Logger:  log,
			Events:  events,
		}, mb)
		m.endpoints[s.ID] = eng
	}

	// Registration must happen before AddDrone wires any neighbor links, so
	// every handle the controller might dial into already exists.
	for id, eng := range m.endpoints {
		ctrl.RegisterEndpoint(id, m.kindOf(id, cfg), eng)
	}
	for _, d := range cfg.Drone {
		ctrl.AddDrone(d.ID, m.drones[d.ID], d.Neighbors, d.PDR)
	}

	return m, nil
}

func (m *Mesh) kindOf(id core.NodeID, cfg *config.NetworkConfig) core.Kind {
	for _, c := range cfg.Client {
		if c.ID == id {
			return core.KindClient
		}
	}
	return core.KindServer
}

// buildServerHandler constructs the Handler for one server config entry,
// wiring a chat server's relay closure to the not-yet-constructed Engine via
// a forward reference — the closure is only invoked after Run starts, by
// which point eng has been assigned. The relay sends each message_from!
// through the engine that owns the chat server's transport.
func buildServerHandler(s config.ServerConfig, m *Mesh) (endpoint.Handler, error) {
	switch s.Kind {
	case "text":
		return endpoint.NewContentServer(core.ServerKindText, nil), nil
	case "media":
		return endpoint.NewContentServer(core.ServerKindMedia, nil), nil
	case "chat":
		return endpoint.NewChatServer(func(dest core.NodeID, payload []byte) error {
			eng, ok := m.endpoints[s.ID]
			if !ok {
				return fmt.Errorf("simulation: chat server %d not yet wired", s.ID)
			}
			return eng.Send(dest, payload)
		}), nil
	default:
		return nil, fmt.Errorf("simulation: unknown server kind %q for node %d", s.Kind, s.ID)
	}
}

// Controller returns the running mesh's controller, for the httpapi and
// metrics packages to attach to.
func (m *Mesh) Controller() *controller.Controller { return m.ctrl }

// Run starts every node goroutine and the controller goroutine under a
// shared errgroup, returning once ctx is cancelled or any goroutine returns
// an error (none do today; node loops only ever return on context
// cancellation, matching spec.md §5 "a node terminates only on Crash ... or
// loop break").
func (m *Mesh) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m.ctrl.Run(gctx)
		return nil
	})
	for _, d := range m.drones {
		d := d
		g.Go(func() error {
			d.Run(gctx)
			return nil
		})
	}
	for _, e := range m.endpoints {
		e := e
		g.Go(func() error {
			e.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}
