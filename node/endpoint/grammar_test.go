package endpoint

import (
	"testing"

	"github.com/dronemesh/overlay/core"
)

func TestParseRequest_ServerType(t *testing.T) {
	r := ParseRequest("server_type?")
	if r.Kind != ReqServerType {
		t.Fatalf("got %v, want ReqServerType", r.Kind)
	}
}

func TestParseRequest_FileWithName(t *testing.T) {
	r := ParseRequest("file?(file1.txt)")
	if r.Kind != ReqFile || r.FileID != "file1.txt" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRequest_MessageForWithDestination(t *testing.T) {
	r := ParseRequest("message_for?(7,hello world)->3")
	if r.Kind != ReqMessageFor {
		t.Fatalf("got kind %v", r.Kind)
	}
	if r.ID != 7 || r.Text != "hello world" {
		t.Fatalf("got %+v", r)
	}
	if !r.HasDest || r.Destination != 3 {
		t.Fatalf("expected destination 3, got %+v", r)
	}
}

func TestParseRequest_Unknown(t *testing.T) {
	r := ParseRequest("not_a_real_command")
	if r.Kind != ReqUnknown {
		t.Fatalf("got %v, want ReqUnknown", r.Kind)
	}
}

func TestFormatRequest_StripsNothingExtra(t *testing.T) {
	got := FormatRequest(Request{Kind: ReqFile, FileID: "file1.txt"})
	if got != "file?(file1.txt)" {
		t.Fatalf("got %q", got)
	}
}

func TestServerTypeReply(t *testing.T) {
	if got := ServerTypeReply(core.ServerKindText); got != "server_type!(TextServer)" {
		t.Fatalf("got %q", got)
	}
}

func TestFilesListReply(t *testing.T) {
	if got := FilesListReply([]string{"a.txt", "b.txt"}); got != "files_list!([a.txt,b.txt])" {
		t.Fatalf("got %q", got)
	}
}

func TestErrNotFoundReply(t *testing.T) {
	if got := ErrNotFoundReply(); got != "error_requested_not_found!(File not found)" {
		t.Fatalf("got %q", got)
	}
}

func TestFileReply(t *testing.T) {
	if got := FileReply([]byte("abc")); got != "file!(3,abc)" {
		t.Fatalf("got %q", got)
	}
}
