package endpoint

import (
	"strconv"
	"strings"
	"sync"

	"github.com/dronemesh/overlay/core"
)

// UICollaborator receives decoded replies for display — the client's link to
// whatever UI layer the simulation front-end provides (spec.md §9 "surface
// the reply to the UI collaborator").
type UICollaborator interface {
	OnReply(from core.NodeID, kind string, payload any)
}

// discardUI drops every reply; used when no UI collaborator is wired.
type discardUI struct{}

func (discardUI) OnReply(core.NodeID, string, any) {}

// Client implements Handler for the client side of the application protocol
// (spec.md §4.4 "Application handler (client side)"): it parses kind!(...)
// replies, updates locally-known state, and forwards the decoded reply to
// a UI collaborator.
type Client struct {
	mu           sync.Mutex
	knownServers map[core.NodeID]core.ServerKind
	knownFiles   map[core.NodeID][]uint64
	knownPeers   map[core.NodeID][]core.NodeID // chat server -> registered peers
	ui           UICollaborator
}

// NewClient creates a Client. ui may be nil, in which case replies are
// decoded but not forwarded anywhere.
func NewClient(ui UICollaborator) *Client {
	if ui == nil {
		ui = discardUI{}
	}
	return &Client{
		knownServers: make(map[core.NodeID]core.ServerKind),
		knownFiles:   make(map[core.NodeID][]uint64),
		knownPeers:   make(map[core.NodeID][]core.NodeID),
		ui:           ui,
	}
}

// Handle parses a server reply and updates local state (spec.md §4.5).
// Clients never send a textual reply back, so Handle always returns "".
func (c *Client) Handle(command string, source core.NodeID) string {
	kind, body := splitReplyKind(command)
	switch kind {
	case "server_type":
		c.recordServerType(source, body)
	case "files_list":
		c.recordFilesList(source, body)
	case "file", "media":
		c.ui.OnReply(source, kind, body)
	case "client_list":
		c.recordClientList(source, body)
	case "message_from":
		c.ui.OnReply(source, kind, body)
	case "error_requested_not_found", "error_unsupported_request", "error_wrong_client_id":
		c.ui.OnReply(source, kind, body)
	default:
		c.ui.OnReply(source, "unknown", command)
	}
	return ""
}

// splitReplyKind separates a kind!(...) or bare kind! reply into its kind
// name and parenthesized body (spec.md §4.3's envelope rule, reused here for
// the general reply grammar, not just file!/media!).
func splitReplyKind(raw string) (kind, body string) {
	bang := strings.IndexByte(raw, '!')
	if bang < 0 {
		return raw, ""
	}
	kind = raw[:bang]
	rest := raw[bang+1:]
	if len(rest) >= 2 && rest[0] == '(' && rest[len(rest)-1] == ')' {
		return kind, rest[1 : len(rest)-1]
	}
	return kind, ""
}

func (c *Client) recordServerType(server core.NodeID, body string) {
	var kind core.ServerKind
	switch body {
	case "TextServer":
		kind = core.ServerKindText
	case "MediaServer":
		kind = core.ServerKindMedia
	case "CommunicationServer":
		kind = core.ServerKindCommunication
	default:
		return
	}
	c.mu.Lock()
	c.knownServers[server] = kind
	c.mu.Unlock()
	c.ui.OnReply(server, "server_type", kind)
}

func (c *Client) recordFilesList(server core.NodeID, body string) {
	ids := parseIDList(body)
	c.mu.Lock()
	c.knownFiles[server] = ids
	c.mu.Unlock()
	c.ui.OnReply(server, "files_list", ids)
}

func (c *Client) recordClientList(server core.NodeID, body string) {
	ids := parseIDList(body)
	peers := make([]core.NodeID, len(ids))
	for i, id := range ids {
		peers[i] = core.NodeID(id)
	}
	c.mu.Lock()
	c.knownPeers[server] = peers
	c.mu.Unlock()
	c.ui.OnReply(server, "client_list", peers)
}

// parseIDList parses a "[1,2,3]" body into a uint64 slice, tolerant of
// surrounding brackets and whitespace.
func parseIDList(body string) []uint64 {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")
	if body == "" {
		return nil
	}
	var ids []uint64
	for _, tok := range strings.Split(body, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if n, err := strconv.ParseUint(tok, 10, 64); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}

// KnownServers returns a snapshot of discovered servers and their kind.
func (c *Client) KnownServers() map[core.NodeID]core.ServerKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[core.NodeID]core.ServerKind, len(c.knownServers))
	for k, v := range c.knownServers {
		out[k] = v
	}
	return out
}

// KnownFiles returns the last-known file list for a content server.
func (c *Client) KnownFiles(server core.NodeID) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.knownFiles[server]...)
}

// KnownPeers returns the last-known registered peer list for a chat server.
func (c *Client) KnownPeers(server core.NodeID) []core.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.NodeID(nil), c.knownPeers[server]...)
}
