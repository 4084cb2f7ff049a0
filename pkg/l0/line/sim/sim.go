// Package sim provides an in-memory line for tests and bench setups
// without hardware.
package sim

import (
	"sync"
	"time"

	"github.com/robotalks/framelink/pkg/l0/line"
)

// DefaultRxSize is the receive buffer size used by NewPair.
const DefaultRxSize = 512

// Line is a simulated line. Transmissions are delivered to the
// connected peer (if any) from a separate goroutine after Delay, then
// the completion callback is called.
type Line struct {
	*line.DMA

	// Delay emulates the time spent on the wire.
	Delay time.Duration

	peer  *Line
	tap   func([]byte)
	drop  func([]byte) bool
	fail  func([]byte) error
	hooks sync.RWMutex
}

// New creates an unconnected Line with a receive buffer of rxSize bytes.
func New(rxSize int) *Line {
	return &Line{DMA: line.NewDMA(rxSize)}
}

// NewPair creates two connected lines.
func NewPair() (*Line, *Line) {
	a, b := New(DefaultRxSize), New(DefaultRxSize)
	Connect(a, b)
	return a, b
}

// Connect wires two lines back to back.
func Connect(a, b *Line) {
	a.peer, b.peer = b, a
}

// Tap installs fn to observe every transmitted frame. It's called
// before the frame reaches the peer and before completion is signalled.
func (l *Line) Tap(fn func([]byte)) {
	l.hooks.Lock()
	l.tap = fn
	l.hooks.Unlock()
}

// DropIf loses transmissions on the wire when fn returns true.
// Completion is still signalled without error.
func (l *Line) DropIf(fn func([]byte) bool) {
	l.hooks.Lock()
	l.drop = fn
	l.hooks.Unlock()
}

// FailIf makes transmissions fail with the error returned by fn.
func (l *Line) FailIf(fn func([]byte) error) {
	l.hooks.Lock()
	l.fail = fn
	l.hooks.Unlock()
}

// Inject delivers bytes as if received from the wire.
func (l *Line) Inject(p []byte) {
	l.DMA.Write(p)
}

// StartTx implements the transmit primitive of a line.
func (l *Line) StartTx(p []byte, done func(error)) error {
	data := append([]byte(nil), p...)
	go func() {
		if l.Delay > 0 {
			time.Sleep(l.Delay)
		}
		l.hooks.RLock()
		tap, drop, fail := l.tap, l.drop, l.fail
		l.hooks.RUnlock()
		var err error
		if fail != nil {
			err = fail(data)
		}
		if err == nil {
			if tap != nil {
				tap(data)
			}
			if l.peer != nil && (drop == nil || !drop(data)) {
				l.peer.Inject(data)
			}
		}
		done(err)
	}()
	return nil
}
