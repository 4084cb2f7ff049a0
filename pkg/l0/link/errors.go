package link

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull indicates the transmit queue has no room.
	ErrQueueFull = errors.New("transmit queue full")
	// ErrRejected indicates a non-blocking send from interrupt context
	// found no room in the transmit queue.
	ErrRejected = errors.New("rejected")
	// ErrNoAck indicates all attempts went unacknowledged.
	ErrNoAck = errors.New("no acknowledgement")
	// ErrCancelled indicates the delivery was cancelled.
	ErrCancelled = errors.New("cancelled")
	// ErrClosed indicates the send task stopped before the delivery completed.
	ErrClosed = errors.New("link closed")
	// ErrResourceTimeout indicates the shared resource wasn't acquired in time.
	ErrResourceTimeout = errors.New("resource acquisition timeout")
	// ErrTxTimeout indicates the line never signalled transmit completion.
	ErrTxTimeout = errors.New("transmit completion timeout")
	// ErrReservedCommand indicates the command value is used by the link itself.
	ErrReservedCommand = errors.New("reserved command")
	// ErrRunning indicates the link is already running.
	ErrRunning = errors.New("already running")
)

// UnknownCommandError is reported when no handler is registered for a
// received command. It holds the command code, so boxing it into an
// error doesn't allocate in interrupt context.
type UnknownCommandError byte

// Error implements error.
func (e UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %#02x", byte(e))
}

// TransmitError wraps an error signalled by the line.
type TransmitError struct {
	Err error
}

// Error implements error.
func (e *TransmitError) Error() string {
	return "transmit failure: " + e.Err.Error()
}

// PeerError is an error report received from the peer.
type PeerError struct {
	Code   byte
	Detail []byte
}

// Error implements error.
func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error %#02x % x", e.Code, e.Detail)
}
