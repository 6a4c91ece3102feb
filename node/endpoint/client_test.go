package endpoint

import (
	"testing"

	"github.com/dronemesh/overlay/core"
)

type recordingUI struct {
	calls []string
}

func (r *recordingUI) OnReply(from core.NodeID, kind string, payload any) {
	r.calls = append(r.calls, kind)
}

func TestClient_RecordsServerType(t *testing.T) {
	ui := &recordingUI{}
	c := NewClient(ui)
	c.Handle("server_type!(MediaServer)", 4)

	servers := c.KnownServers()
	if servers[4] != core.ServerKindMedia {
		t.Fatalf("got %v, want MediaServer", servers[4])
	}
}

func TestClient_RecordsFilesList(t *testing.T) {
	c := NewClient(nil)
	c.Handle("files_list!([1,2,3])", 4)

	files := c.KnownFiles(4)
	if len(files) != 3 || files[0] != 1 || files[2] != 3 {
		t.Fatalf("got %v", files)
	}
}

func TestClient_RecordsClientList(t *testing.T) {
	c := NewClient(nil)
	c.Handle("client_list!([5,6])", 4)

	peers := c.KnownPeers(4)
	if len(peers) != 2 || peers[0] != 5 || peers[1] != 6 {
		t.Fatalf("got %v", peers)
	}
}

func TestClient_UnknownReplyForwardedToUI(t *testing.T) {
	ui := &recordingUI{}
	c := NewClient(ui)
	c.Handle("something_unexpected!(x)", 1)
	if len(ui.calls) != 1 || ui.calls[0] != "unknown" {
		t.Fatalf("got calls %v", ui.calls)
	}
}

func TestClient_HandleAlwaysReturnsEmpty(t *testing.T) {
	c := NewClient(nil)
	if got := c.Handle("message_from!(1,hi)", 1); got != "" {
		t.Fatalf("expected empty reply, got %q", got)
	}
}
