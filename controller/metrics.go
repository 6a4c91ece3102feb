package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the controller's event stream as Prometheus counters:
// packets sent, packets dropped, flood requests forwarded, controller
// shortcuts, connections added and removed, drones crashed, and PDR changes.
// There is no retransmission or completed-session counter. It subscribes to
// a Controller's outbound event stream and increments counters as events
// arrive; the registered counters are served by the promhttp handler that
// cmd/meshsim mounts for the registry passed to NewMetrics.
type Metrics struct {
	packetsSent     prometheus.Counter
	packetsDropped  prometheus.Counter
	floodForwarded  prometheus.Counter
	shortcuts       prometheus.Counter
	connectionsAdd  prometheus.Counter
	connectionsDrop prometheus.Counter
	dronesCrashed   prometheus.Counter
	pdrChanges      prometheus.Counter
}

// NewMetrics registers the mesh's counters against reg. Pass
// prometheus.DefaultRegisterer for the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		packetsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "packets_sent_total",
			Help:      "Packets successfully handed to a neighbor link.",
		}),
		packetsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "packets_dropped_total",
			Help:      "MsgFragments dropped by a drone's packet-drop-rate roll.",
		}),
		floodForwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "flood_forwarded_total",
			Help:      "FloodRequest packets forwarded by drones during topology discovery.",
		}),
		shortcuts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "controller_shortcuts_total",
			Help:      "Packets delivered directly by the controller, bypassing the mesh.",
		}),
		connectionsAdd: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "connections_added_total",
			Help:      "Connections added to the topology at runtime.",
		}),
		connectionsDrop: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "connections_removed_total",
			Help:      "Connections removed from the topology at runtime.",
		}),
		dronesCrashed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "drones_crashed_total",
			Help:      "Drones crashed at runtime via the controller.",
		}),
		pdrChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "meshsim",
			Name:      "pdr_changes_total",
			Help:      "Packet-drop-rate adjustments applied to drones at runtime.",
		}),
	}
}

// Observe increments the matching counter for ev. Call this for every event
// read from Controller.Events().
func (m *Metrics) Observe(ev Event) {
	switch ev.Kind {
	case EventPacketSent:
		m.packetsSent.Inc()
		if ev.Packet != nil && ev.Packet.Kind.String() == "FloodRequest" {
			m.floodForwarded.Inc()
		}
	case EventPacketDropped:
		m.packetsDropped.Inc()
	case EventControllerShortcut:
		m.shortcuts.Inc()
	case EventConnectionAdded:
		m.connectionsAdd.Inc()
	case EventConnectionRemoved:
		m.connectionsDrop.Inc()
	case EventDroneCrashed:
		m.dronesCrashed.Inc()
	case EventPDRSet:
		m.pdrChanges.Inc()
	}
}

// Run drains events until the channel closes, feeding Observe. Intended to
// run in its own goroutine alongside Controller.Run.
func (m *Metrics) Run(events <-chan Event) {
	for ev := range events {
		m.Observe(ev)
	}
}
