// Package endpoint implements the client and server event loops that sit on
// top of the drone mesh: fragmentation/reassembly, BFS routing with local
// repair, flood-based discovery, and the textual application protocol
// (spec.md §4.4/§4.5).
//
// Grounded in the teacher's device/room/{server,request,respond}.go request-
// dispatch idiom and in original_source/codice/{client1,client2,server}/src
// (message.rs for the exact grammar strings).
package endpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dronemesh/overlay/core"
)

// RequestKind discriminates a parsed client->server request (spec.md §4.5).
type RequestKind int

const (
	ReqServerType RequestKind = iota
	ReqFilesList
	ReqFile
	ReqMedia
	ReqClientList
	ReqMessageFor
	ReqUnknown
)

// Request is a parsed application-layer request.
type Request struct {
	Kind RequestKind
	// ID is the target peer id for ReqMessageFor.
	ID uint64
	// FileID is the requested filename for ReqFile/ReqMedia. The wire
	// protocol names files by string (file?(file1.txt)), not by a numeric
	// id — see original_source/codice/server/src/message.rs's file?/media?
	// handlers, which join the argument directly onto a filesystem path.
	FileID string
	// Text is the message body for ReqMessageFor.
	Text string
	// Destination is the ->destination suffix the client attached before
	// the payload entered the fragmentation layer — stripped from the wire
	// payload per spec.md §4.5 and carried separately.
	Destination core.NodeID
	HasDest     bool
}

// ParseRequest parses a server-side command string. Requests carry an
// optional trailing "->destination" that was stripped at the client's send
// site; this parser also tolerates it still being present for robustness.
func ParseRequest(raw string) Request {
	body, dest, hasDest := splitDestination(raw)
	body = strings.TrimSpace(body)

	switch {
	case body == "server_type?":
		return Request{Kind: ReqServerType, Destination: dest, HasDest: hasDest}
	case body == "files_list?":
		return Request{Kind: ReqFilesList, Destination: dest, HasDest: hasDest}
	case body == "client_list?":
		return Request{Kind: ReqClientList, Destination: dest, HasDest: hasDest}
	case strings.HasPrefix(body, "file?(") && strings.HasSuffix(body, ")"):
		name := strings.TrimSpace(body[len("file?(") : len(body)-1])
		if name == "" {
			return Request{Kind: ReqUnknown}
		}
		return Request{Kind: ReqFile, FileID: name, Destination: dest, HasDest: hasDest}
	case strings.HasPrefix(body, "media?(") && strings.HasSuffix(body, ")"):
		name := strings.TrimSpace(body[len("media?(") : len(body)-1])
		if name == "" {
			return Request{Kind: ReqUnknown}
		}
		return Request{Kind: ReqMedia, FileID: name, Destination: dest, HasDest: hasDest}
	case strings.HasPrefix(body, "message_for?(") && strings.HasSuffix(body, ")"):
		inner := body[len("message_for?(") : len(body)-1]
		parts := strings.SplitN(inner, ",", 2)
		if len(parts) != 2 {
			return Request{Kind: ReqUnknown}
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return Request{Kind: ReqUnknown}
		}
		return Request{Kind: ReqMessageFor, ID: id, Text: parts[1], Destination: dest, HasDest: hasDest}
	default:
		return Request{Kind: ReqUnknown}
	}
}

// splitDestination strips a trailing "->destination" suffix, per spec.md
// §4.5 "Requests include a trailing ->destination ... stripped before being
// transmitted" — kept here so the parser stays tolerant of either shape.
func splitDestination(raw string) (body string, dest core.NodeID, has bool) {
	if idx := strings.LastIndex(raw, "->"); idx != -1 {
		if n, err := strconv.ParseUint(strings.TrimSpace(raw[idx+2:]), 10, 8); err == nil {
			return raw[:idx], core.NodeID(n), true
		}
	}
	return raw, 0, false
}

// FormatRequest renders a Request back to wire text, stripping the
// ->destination suffix (spec.md §4.5).
func FormatRequest(r Request) string {
	switch r.Kind {
	case ReqServerType:
		return "server_type?"
	case ReqFilesList:
		return "files_list?"
	case ReqClientList:
		return "client_list?"
	case ReqFile:
		return fmt.Sprintf("file?(%s)", r.FileID)
	case ReqMedia:
		return fmt.Sprintf("media?(%s)", r.FileID)
	case ReqMessageFor:
		return fmt.Sprintf("message_for?(%d,%s)", r.ID, r.Text)
	default:
		return ""
	}
}

// ServerTypeReply formats the server_type! response.
func ServerTypeReply(kind core.ServerKind) string {
	return fmt.Sprintf("server_type!(%s)", kind.String())
}

// FilesListReply formats the files_list! response. Callers are expected to
// pass names already sorted (see ContentServer.Handle) — message.rs sorts
// client ids "because it's easier when we debug" and we apply the same
// discipline to filenames for the same reason.
func FilesListReply(names []string) string {
	return fmt.Sprintf("files_list!(%s)", formatNameList(names))
}

// ClientListReply formats the client_list! response. ids must already be
// sorted ascending (message.rs: "ids.sort(); // it's easier when we debug").
func ClientListReply(ids []core.NodeID) string {
	u := make([]uint64, len(ids))
	for i, id := range ids {
		u[i] = uint64(id)
	}
	return fmt.Sprintf("client_list!(%s)", formatIDList(u))
}

func formatIDList(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatNameList(names []string) string {
	return "[" + strings.Join(names, ",") + "]"
}

// FileReply formats the file!(size,bytes) response envelope.
func FileReply(data []byte) string {
	return fmt.Sprintf("file!(%d,%s)", len(data), string(data))
}

// MediaReply formats the media!(bytes) response envelope.
func MediaReply(data []byte) string {
	return fmt.Sprintf("media!(%s)", string(data))
}

// MessageFromReply formats the message_from! response.
func MessageFromReply(sender core.NodeID, text string) string {
	return fmt.Sprintf("message_from!(%d,%s)", sender, text)
}

// ErrNotFoundReply formats the error_requested_not_found! response. The
// reply carries the fixed text "File not found" rather than echoing back
// whatever was requested, matching message.rs's file?/media? miss path.
func ErrNotFoundReply() string {
	return "error_requested_not_found!(File not found)"
}

// ErrUnsupportedReply formats the error_unsupported_request! response.
func ErrUnsupportedReply() string { return "error_unsupported_request!" }

// ErrWrongClientReply formats the error_wrong_client_id! response.
func ErrWrongClientReply() string { return "error_wrong_client_id!" }
