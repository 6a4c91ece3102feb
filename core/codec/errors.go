package codec

import "errors"

var (
	// ErrPacketTooShort is returned when raw bytes are too short to decode
	// a complete packet.
	ErrPacketTooShort = errors.New("codec: packet too short")

	// ErrPathTooLong is returned when a routing header's hop count exceeds
	// the maximum path size.
	ErrPathTooLong = errors.New("codec: path length exceeds maximum")

	// ErrFragmentTooLong is returned when a fragment's declared length
	// exceeds the fixed fragment window.
	ErrFragmentTooLong = errors.New("codec: fragment length exceeds maximum")

	// ErrInvalidEncoding is returned when the raw bytes do not form a
	// well-formed packet for the declared kind.
	ErrInvalidEncoding = errors.New("codec: invalid packet encoding")

	// ErrUnknownKind is returned when decoding a packet with an unrecognized
	// kind discriminant.
	ErrUnknownKind = errors.New("codec: unknown packet kind")
)
