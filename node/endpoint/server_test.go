package endpoint

import (
	"testing"

	"github.com/dronemesh/overlay/core"
)

func TestContentServer_FilesListAndFetch(t *testing.T) {
	s := NewContentServer(core.ServerKindText, map[string][]byte{"file1.txt": []byte("hello")})

	if got := s.Handle("server_type?", 9); got != "server_type!(TextServer)" {
		t.Fatalf("got %q", got)
	}
	if got := s.Handle("files_list?", 9); got != "files_list!([file1.txt])" {
		t.Fatalf("got %q", got)
	}
	if got := s.Handle("file?(file1.txt)", 9); got != "file!(5,hello)" {
		t.Fatalf("got %q", got)
	}
	if got := s.Handle("file?(missing.txt)", 9); got != "error_requested_not_found!(File not found)" {
		t.Fatalf("got %q", got)
	}
}

func TestContentServer_UnsupportedRequest(t *testing.T) {
	s := NewContentServer(core.ServerKindText, nil)
	if got := s.Handle("client_list?", 1); got != "error_unsupported_request!" {
		t.Fatalf("got %q", got)
	}
}

func TestChatServer_RegisterAndClientList(t *testing.T) {
	cs := NewChatServer(nil)

	if got := cs.Handle("client_list?", 1); got != "client_list!([1])" {
		t.Fatalf("got %q", got)
	}
	if got := cs.Handle("client_list?", 5); got != "client_list!([1,5])" {
		t.Fatalf("got %q", got)
	}
}

func TestChatServer_MessageForUnknownClient(t *testing.T) {
	cs := NewChatServer(nil)
	cs.Handle("server_type?", 1) // register 1 only

	got := cs.Handle("message_for?(99,hi)", 1)
	if got != "error_wrong_client_id!" {
		t.Fatalf("got %q", got)
	}
}

func TestChatServer_MessageForRelays(t *testing.T) {
	var relayedTo core.NodeID
	var relayedPayload string
	cs := NewChatServer(func(dest core.NodeID, payload []byte) error {
		relayedTo = dest
		relayedPayload = string(payload)
		return nil
	})
	cs.Handle("server_type?", 1)
	cs.Handle("server_type?", 2)

	got := cs.Handle("message_for?(2,hello)", 1)
	if got != "" {
		t.Fatalf("expected empty direct reply, got %q", got)
	}
	if relayedTo != 2 {
		t.Fatalf("expected relay to node 2, got %d", relayedTo)
	}
	if relayedPayload != "message_from!(1,hello)" {
		t.Fatalf("got relayed payload %q", relayedPayload)
	}
}
