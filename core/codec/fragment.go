package codec

import "fmt"

// FragmentSize is the fixed width of a fragment's data window (spec.md §3).
const FragmentSize = 128

// Fragment is the fixed-layout unit carried by a MsgFragment packet.
// Invariants: FragmentIndex < TotalFragments; Length > 0; bytes
// Data[Length:FragmentSize] are unspecified padding and must be ignored by
// receivers.
type Fragment struct {
	FragmentIndex  uint64
	TotalFragments uint64
	Length         uint8
	Data           [FragmentSize]byte
}

// Validate checks the fragment invariants from spec.md §3.
func (f *Fragment) Validate() error {
	if f.FragmentIndex >= f.TotalFragments {
		return fmt.Errorf("%w: index %d >= total %d", ErrInvalidEncoding, f.FragmentIndex, f.TotalFragments)
	}
	if f.Length == 0 {
		return fmt.Errorf("%w: zero-length fragment", ErrInvalidEncoding)
	}
	if int(f.Length) > FragmentSize {
		return fmt.Errorf("%w: %d bytes", ErrFragmentTooLong, f.Length)
	}
	return nil
}

// Payload returns the meaningful bytes of the fragment, excluding padding.
func (f *Fragment) Payload() []byte {
	return f.Data[:f.Length]
}

// WriteTo encodes the fragment to its wire representation:
// fragment_index(8) + total_fragments(8) + length(1) + data(128).
func (f *Fragment) WriteTo() []byte {
	buf := make([]byte, 17+FragmentSize)
	putUint64(buf[0:8], f.FragmentIndex)
	putUint64(buf[8:16], f.TotalFragments)
	buf[16] = f.Length
	copy(buf[17:], f.Data[:])
	return buf
}

// ReadFragment decodes a fragment from its wire representation.
func ReadFragment(data []byte) (Fragment, error) {
	var f Fragment
	if len(data) < 17+FragmentSize {
		return f, ErrPacketTooShort
	}
	f.FragmentIndex = getUint64(data[0:8])
	f.TotalFragments = getUint64(data[8:16])
	f.Length = data[16]
	copy(f.Data[:], data[17:17+FragmentSize])
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// BuildFragments splits payload into fixed-128-byte fragments per spec.md §4.3.
// For an N-byte payload it produces ceil(N/128) fragments; the last fragment's
// Length may be less than FragmentSize and its tail bytes are zero-padded.
func BuildFragments(payload []byte) []Fragment {
	total := (len(payload) + FragmentSize - 1) / FragmentSize
	if total == 0 {
		total = 1 // an empty payload still produces one zero-length-bearing fragment
	}
	fragments := make([]Fragment, total)
	for i := 0; i < total; i++ {
		start := i * FragmentSize
		end := start + FragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		slice := payload[start:end]
		var f Fragment
		f.FragmentIndex = uint64(i)
		f.TotalFragments = uint64(total)
		f.Length = uint8(len(slice))
		copy(f.Data[:], slice)
		if f.Length == 0 {
			// Degenerate case: an empty payload — emit a single fragment
			// with length 1 carrying a single NUL byte so the invariant
			// Length > 0 always holds.
			f.Length = 1
		}
		fragments[i] = f
	}
	return fragments
}
