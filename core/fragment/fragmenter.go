package fragment

import (
	"bytes"
	"strconv"

	"github.com/dronemesh/overlay/core/codec"
)

// Split fragments a payload into fixed 128-byte fragments (spec.md §4.3).
func Split(payload []byte) []codec.Fragment {
	return codec.BuildFragments(payload)
}

// DecodeText interprets a completed payload as a UTF-8 textual reply,
// trimming trailing zero padding introduced by the last fragment's slack
// (spec.md §4.3).
func DecodeText(payload []byte) string {
	return string(bytes.TrimRight(payload, "\x00"))
}

// Envelope is a parsed kind!(...) binary reply, used to decode file!(...)
// and media!(...) responses (spec.md §4.3).
type Envelope struct {
	Kind string
	Size int  // only meaningful for file!(size, bytes); -1 if absent
	Data []byte
}

// DecodeEnvelope locates the first '(', the first following ',' (optional),
// and the last ')' in a trailing-zero-trimmed payload, per spec.md §4.3:
//
//	kind!(size, bytes)   — file!
//	kind!(bytes)          — media!
func DecodeEnvelope(payload []byte) (Envelope, bool) {
	trimmed := bytes.TrimRight(payload, "\x00")

	open := bytes.IndexByte(trimmed, '(')
	if open < 0 {
		return Envelope{}, false
	}
	kind := string(trimmed[:open])
	if len(kind) > 0 && kind[len(kind)-1] == '!' {
		kind = kind[:len(kind)-1]
	}

	close := bytes.LastIndexByte(trimmed, ')')
	if close < 0 || close <= open {
		return Envelope{}, false
	}

	inner := trimmed[open+1 : close]
	size := -1
	data := inner

	if comma := bytes.IndexByte(inner, ','); comma >= 0 {
		sizeStr := string(bytes.TrimSpace(inner[:comma]))
		if n, err := strconv.Atoi(sizeStr); err == nil {
			size = n
			data = inner[comma+1:]
			if len(data) > 0 && data[0] == ' ' {
				data = data[1:]
			}
		}
	}

	return Envelope{Kind: kind, Size: size, Data: data}, true
}
