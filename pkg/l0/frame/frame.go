package frame

import "fmt"

// Sync pair opening every frame.
const (
	Sync1 byte = 0x69
	Sync2 byte = 0xAA
)

// Byte offsets inside a frame.
const (
	OffLen     = 2
	OffSeq     = 3
	OffSender  = 4
	OffCmd     = 5
	OffPayload = 6

	// OffBody is where the checksummed body starts.
	OffBody = OffSender
)

const (
	// Overhead is the number of bytes not counted by the length field.
	Overhead = 4
	// MinLen is the length of a frame with an empty payload.
	MinLen = OffPayload + 1
	// MaxPayload is the largest payload the length field can describe.
	MaxPayload = 0xff - 3
	// MaxLen is the length of a frame carrying MaxPayload bytes.
	MaxLen = MaxPayload + MinLen
)

// Frame is a decoded frame. Payload aliases the decoded buffer.
type Frame struct {
	Seq     Seq
	Sender  byte
	Cmd     byte
	Payload []byte
}

// String implements fmt.Stringer.
func (f Frame) String() string {
	return fmt.Sprintf("seq=%d sender=%#02x cmd=%#02x len=%d", f.Seq, f.Sender, f.Cmd, len(f.Payload))
}

// EncodedLen returns the wire length for a payload of n bytes.
func EncodedLen(n int) int {
	return n + MinLen
}

// Put encodes a frame into dst and returns the number of bytes written.
// It doesn't retain payload and doesn't allocate.
func Put(dst []byte, sender byte, seq Seq, cmd byte, payload []byte) (int, error) {
	if len(payload) > MaxPayload {
		return 0, ErrPayloadTooLarge
	}
	n := EncodedLen(len(payload))
	if len(dst) < n {
		return 0, ErrShortBuffer
	}
	dst[0], dst[1] = Sync1, Sync2
	dst[OffLen] = byte(len(payload) + 3)
	dst[OffSeq] = byte(seq)
	dst[OffSender] = sender
	dst[OffCmd] = cmd
	copy(dst[OffPayload:], payload)
	dst[n-1] = Checksum(dst[OffBody : n-1])
	return n, nil
}

// Encode builds a frame from its fields.
func Encode(sender byte, seq Seq, cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	b := make([]byte, EncodedLen(len(payload)))
	if _, err := Put(b, sender, seq, cmd, payload); err != nil {
		return nil, err
	}
	return b, nil
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() ([]byte, error) {
	return Encode(f.Sender, f.Seq, f.Cmd, f.Payload)
}

// HasHeader is true iff buf starts with the sync pair.
func HasHeader(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == Sync1 && buf[1] == Sync2
}

// Len returns the total frame length announced by the header,
// or false if the length byte hasn't arrived yet.
func Len(buf []byte) (int, bool) {
	if len(buf) <= OffLen {
		return 0, false
	}
	return int(buf[OffLen]) + Overhead, true
}

// IsWellFormed recomputes the checksum of the frame of length bytes at
// the head of buf and compares it with the trailing byte.
func IsWellFormed(buf []byte, length int) bool {
	if length < MinLen || len(buf) < length {
		return false
	}
	return Checksum(buf[OffBody:length-1]) == buf[length-1]
}

// Complete returns the length of the valid frame at the head of buf.
func Complete(buf []byte) (int, bool) {
	if !HasHeader(buf) {
		return 0, false
	}
	n, ok := Len(buf)
	if !ok || n > len(buf) {
		return 0, false
	}
	return n, IsWellFormed(buf, n)
}

// Decode parses the frame at the head of buf.
func Decode(buf []byte) (f Frame, err error) {
	if !HasHeader(buf) {
		return f, ErrNoHeader
	}
	n, ok := Len(buf)
	if !ok || n > len(buf) {
		return f, ErrIncomplete
	}
	if !IsWellFormed(buf, n) {
		return f, ErrChecksum
	}
	f.Seq = Seq(buf[OffSeq])
	f.Sender = buf[OffSender]
	f.Cmd = buf[OffCmd]
	f.Payload = buf[OffPayload : n-1]
	return f, nil
}
