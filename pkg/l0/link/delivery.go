package link

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

// State is the progress of a Delivery.
type State int32

// Delivery states.
const (
	StateIdle State = iota
	StateEnqueued
	StateTransmitting
	StateAwaitingAck
	StateRetrying
	StateAcknowledged
	StateExhausted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	"idle",
	"enqueued",
	"transmitting",
	"awaiting-ack",
	"retrying",
	"acknowledged",
	"exhausted",
	"cancelled",
	"failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state-%d", int32(s))
}

// Final is true once the delivery completed.
func (s State) Final() bool {
	return s >= StateAcknowledged
}

// Delivery tracks one frame through the send task.
type Delivery struct {
	cmd      byte
	seq      frame.Seq
	raw      []byte
	resource Resource

	state    int32
	attempts int32
	// time of the first transmission, acknowledgements before it
	// belong to an earlier frame with the same seq.
	since time.Time

	err        error
	doneCh     chan struct{}
	cancelCh   chan struct{}
	cancelOnce sync.Once
}

func newDelivery(sender byte, seq frame.Seq, cmd byte, payload []byte) (*Delivery, error) {
	raw, err := frame.Encode(sender, seq, cmd, payload)
	if err != nil {
		return nil, err
	}
	return &Delivery{
		cmd:      cmd,
		seq:      seq,
		raw:      raw,
		state:    int32(StateEnqueued),
		doneCh:   make(chan struct{}),
		cancelCh: make(chan struct{}),
	}, nil
}

// Cmd returns the command of the frame.
func (d *Delivery) Cmd() byte {
	return d.cmd
}

// Seq returns the sequence number of the frame.
func (d *Delivery) Seq() frame.Seq {
	return d.seq
}

// Bytes returns the encoded frame.
func (d *Delivery) Bytes() []byte {
	return d.raw
}

// State returns the current state.
func (d *Delivery) State() State {
	return State(atomic.LoadInt32(&d.state))
}

// Attempts returns the number of transmissions so far.
func (d *Delivery) Attempts() int {
	return int(atomic.LoadInt32(&d.attempts))
}

// Done is closed when the delivery completes.
func (d *Delivery) Done() <-chan struct{} {
	return d.doneCh
}

// Err returns the result once Done is closed: nil when acknowledged,
// ErrNoAck, ErrCancelled, ErrClosed or the last failure otherwise.
func (d *Delivery) Err() error {
	select {
	case <-d.doneCh:
		return d.err
	default:
		return nil
	}
}

// Wait blocks until the delivery completes or ctx is done.
// Cancelling ctx doesn't cancel the delivery.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.doneCh:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel abandons the delivery. The send task stops waiting for the
// acknowledgement and completes it with ErrCancelled, no report is raised.
// A delivery already completed is not affected.
func (d *Delivery) Cancel() {
	d.cancelOnce.Do(func() {
		close(d.cancelCh)
	})
}

func (d *Delivery) cancelled() bool {
	select {
	case <-d.cancelCh:
		return true
	default:
		return false
	}
}

func (d *Delivery) setState(s State) {
	atomic.StoreInt32(&d.state, int32(s))
}

func (d *Delivery) finish(s State, err error) {
	d.err = err
	d.setState(s)
	close(d.doneCh)
}
