// Package core defines the identifiers and node kinds shared by every
// component of the overlay mesh: drones, clients, servers, and the
// simulation controller.
package core

import "fmt"

// NodeID is an unsigned byte identifying a node, unique per simulation.
type NodeID uint8

// Kind distinguishes the three node roles the mesh supports.
type Kind uint8

const (
	KindDrone Kind = iota
	KindClient
	KindServer
)

// String returns a human-readable name for the node kind.
func (k Kind) String() string {
	switch k {
	case KindDrone:
		return "Drone"
	case KindClient:
		return "Client"
	case KindServer:
		return "Server"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// ServerKind distinguishes the application protocol implemented by a server
// node. Unlike Kind, this is only meaningful for nodes where Kind == KindServer.
type ServerKind uint8

const (
	ServerKindText ServerKind = iota
	ServerKindMedia
	ServerKindCommunication
)

// String returns the wire name used in server_type! replies (§4.5).
func (s ServerKind) String() string {
	switch s {
	case ServerKindText:
		return "TextServer"
	case ServerKindMedia:
		return "MediaServer"
	case ServerKindCommunication:
		return "CommunicationServer"
	default:
		return fmt.Sprintf("UnknownServer(%d)", uint8(s))
	}
}

// IsContentServer reports whether this server kind serves files/media rather
// than chat.
func (s ServerKind) IsContentServer() bool {
	return s == ServerKindText || s == ServerKindMedia
}
