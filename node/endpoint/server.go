package endpoint

import (
	"sort"
	"sync"

	"github.com/dronemesh/overlay/core"
)

// ContentServer serves files_list?/file?/media? requests from a static
// repository, implementing Handler for ServerKindText/ServerKindMedia
// (spec.md §4.4/§4.5). Grounded in the teacher's device/room/server.go
// dispatch idiom, re-purposed from a MeshCore public-room broadcaster to a
// per-request file/media responder. Files are keyed by name, not a numeric
// id — original_source/codice/server/src/message.rs's file?/media? handlers
// join the request argument directly onto a filesystem path.
type ContentServer struct {
	Kind  core.ServerKind
	Files map[string][]byte
}

// NewContentServer creates a ContentServer seeded with the given file
// repository (names map to raw bytes served by file!/media!).
func NewContentServer(kind core.ServerKind, files map[string][]byte) *ContentServer {
	if files == nil {
		files = make(map[string][]byte)
	}
	return &ContentServer{Kind: kind, Files: files}
}

// Handle implements spec.md §4.5's server-side grammar for content servers.
func (s *ContentServer) Handle(command string, _ core.NodeID) string {
	req := ParseRequest(command)
	switch req.Kind {
	case ReqServerType:
		return ServerTypeReply(s.Kind)
	case ReqFilesList:
		names := make([]string, 0, len(s.Files))
		for name := range s.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		return FilesListReply(names)
	case ReqFile:
		data, ok := s.Files[req.FileID]
		if !ok {
			return ErrNotFoundReply()
		}
		if s.Kind != core.ServerKindMedia {
			return FileReply(data)
		}
		return MediaReply(data)
	case ReqMedia:
		data, ok := s.Files[req.FileID]
		if !ok {
			return ErrNotFoundReply()
		}
		return MediaReply(data)
	default:
		return ErrUnsupportedReply()
	}
}

// ChatServer relays message_for? requests between registered clients and
// answers client_list?, implementing Handler for ServerKindCommunication.
// Grounded in the teacher's device/connection.Manager keep-alive tracker,
// repurposed here from a timeout-eviction heartbeat store to a
// register-on-first-contact peer directory (spec.md §9 supplemented
// feature: "chat-server register-on-first-contact").
type ChatServer struct {
	mu      sync.Mutex
	clients map[core.NodeID]struct{}
	relay   func(dest core.NodeID, payload []byte) error
}

// NewChatServer creates a ChatServer. relay is invoked to forward a
// message_for? body to its target peer — ordinarily Engine.Send.
func NewChatServer(relay func(dest core.NodeID, payload []byte) error) *ChatServer {
	return &ChatServer{clients: make(map[core.NodeID]struct{}), relay: relay}
}

// Handle implements spec.md §4.5's server-side grammar for the chat server.
// Every source is registered on first contact, matching the original
// simulator's register-before-request flow without requiring an explicit
// register! request the distilled spec never names.
func (c *ChatServer) Handle(command string, source core.NodeID) string {
	c.register(source)

	req := ParseRequest(command)
	switch req.Kind {
	case ReqServerType:
		return ServerTypeReply(core.ServerKindCommunication)
	case ReqClientList:
		return ClientListReply(c.registeredClients())
	case ReqMessageFor:
		return c.relayMessage(source, req)
	default:
		return ErrUnsupportedReply()
	}
}

func (c *ChatServer) register(id core.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[id] = struct{}{}
}

func (c *ChatServer) registeredClients() []core.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.NodeID, 0, len(c.clients))
	for id := range c.clients {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// relayMessage forwards a message_for? body to its target, returning
// error_wrong_client_id! when the target was never registered (spec.md
// §4.5) — the "unknown_client" flag from spec.md §4.4's handler contract
// surfaces here as that reply rather than a separate out-of-band flag,
// since the server's only channel back to the caller is the reply string.
func (c *ChatServer) relayMessage(source core.NodeID, req Request) string {
	c.mu.Lock()
	_, known := c.clients[core.NodeID(req.ID)]
	c.mu.Unlock()
	if !known {
		return ErrWrongClientReply()
	}
	if c.relay != nil {
		_ = c.relay(core.NodeID(req.ID), []byte(MessageFromReply(source, req.Text)))
	}
	return ""
}
