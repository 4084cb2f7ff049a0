package frame

import "errors"

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit the one-byte length field.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrShortBuffer indicates the destination can't hold the encoded frame.
	ErrShortBuffer = errors.New("short buffer")
	// ErrNoHeader indicates the buffer doesn't start with the sync pair.
	ErrNoHeader = errors.New("no frame header")
	// ErrIncomplete indicates more bytes are needed.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrChecksum indicates the trailing checksum doesn't match.
	ErrChecksum = errors.New("checksum mismatch")
)
