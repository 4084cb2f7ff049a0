package link

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

// Commands used by the link itself.
const (
	// CmdAck acknowledges the frame whose seq is the first payload byte.
	CmdAck byte = 0xFF
	// CmdError carries an error report, [code, detail...].
	CmdError byte = 0xFE
)

// Error codes carried by CmdError frames.
const (
	ErrCodeUnknownCommand byte = 0x01
)

// TaskHandler handles frames in task context and may block.
// Frames completed in interrupt context are queued to the link's handler
// task; frames completed through Link.Receive are handled by the caller.
type TaskHandler interface {
	HandleFrame(ctx context.Context, f frame.Frame)
}

// HandleFrameFunc is func form of TaskHandler.
type HandleFrameFunc func(ctx context.Context, f frame.Frame)

// HandleFrame implements TaskHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, fr frame.Frame) {
	f(ctx, fr)
}

// ISRHandler handles frames in whatever context completed them, usually
// interrupt context. It must not block. f.Payload is only valid during
// the call.
type ISRHandler interface {
	HandleFrameISR(isr *ISR, f frame.Frame)
}

// HandleFrameISRFunc is func form of ISRHandler.
type HandleFrameISRFunc func(isr *ISR, f frame.Frame)

// HandleFrameISR implements ISRHandler.
func (f HandleFrameISRFunc) HandleFrameISR(isr *ISR, fr frame.Frame) {
	f(isr, fr)
}

type handler struct {
	task TaskHandler
	isr  ISRHandler
}

func (h handler) empty() bool {
	return h.task == nil && h.isr == nil
}

// Register installs a task-context handler for cmd.
// It panics when cmd is CmdAck, already registered or the link is running.
func (l *Link) Register(cmd byte, h TaskHandler) {
	l.register(cmd, handler{task: h})
}

// RegisterISR installs an interrupt-context handler for cmd.
// It panics like Register.
func (l *Link) RegisterISR(cmd byte, h ISRHandler) {
	l.register(cmd, handler{isr: h})
}

func (l *Link) register(cmd byte, h handler) {
	if cmd == CmdAck {
		panic(fmt.Sprintf("link %s: command %#02x reserved", l.name, cmd))
	}
	if atomic.LoadInt32(&l.running) != 0 {
		panic(fmt.Sprintf("link %s: register %#02x after start", l.name, cmd))
	}
	if !l.handlers[cmd].empty() {
		panic(fmt.Sprintf("link %s: handler for %#02x already registered", l.name, cmd))
	}
	l.handlers[cmd] = h
}

// Registered is true if a handler is installed for cmd.
func (l *Link) Registered(cmd byte) bool {
	return !l.handlers[cmd].empty()
}
