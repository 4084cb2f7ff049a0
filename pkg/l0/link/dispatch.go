package link

import (
	"sync/atomic"
	"time"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

// ISR is the interrupt-context handle of a Link. None of its methods
// block. The receive path doesn't allocate unless it has to report an
// error.
type ISR struct {
	l *Link
}

// Name returns the name of the link.
func (i *ISR) Name() string {
	return i.l.name
}

// RxEvent pulls newly received bytes from the line's circular buffer and
// dispatches every completed frame. Lines call it on idle line and
// half-full buffer.
func (i *ISR) RxEvent() {
	l := i.l
	l.rxLock.Lock()
	l.reasm.Advance(l.line.RxBuffer(), l.line.RxCursor(), l.feedFn)
	l.rxLock.Unlock()
}

// Receive feeds bytes received outside the line's circular buffer.
func (i *ISR) Receive(span []byte) {
	l := i.l
	l.rxLock.Lock()
	l.feed(span)
	l.rxLock.Unlock()
}

// Send enqueues a frame without waiting, ErrRejected if the transmit
// queue is full.
func (i *ISR) Send(cmd byte, payload []byte) error {
	l := i.l
	d, err := l.newDelivery(cmd, payload)
	if err != nil {
		return err
	}
	select {
	case l.txq <- d:
		return nil
	default:
		atomic.AddUint64(&l.stats.QueueFull, 1)
		return ErrRejected
	}
}

// Raise queues a report for the report task.
func (i *ISR) Raise(kind ReportKind, cmd byte, seq frame.Seq, err error) {
	i.l.raise(Report{Kind: kind, Cmd: cmd, Seq: seq, Err: err})
}

func (l *Link) feed(span []byte) {
	atomic.AddUint64(&l.stats.BytesIn, uint64(len(span)))
	if l.trace != nil {
		l.trace.Write(span)
	}
	l.resync.Feed(span)
}

// onFrame is called by the Resynchronizer with rxLock held.
func (l *Link) onFrame(raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		return
	}
	atomic.AddUint64(&l.stats.FramesIn, 1)
	switch f.Cmd {
	case CmdAck:
		if len(f.Payload) > 0 {
			l.resolveAck(frame.Seq(f.Payload[0]))
		}
		return
	case CmdError:
		// never acknowledged, never suppressed.
	default:
		l.sendAck(f.Seq)
		if f.Seq.IsValid() && f.Seq == l.lastIn {
			atomic.AddUint64(&l.stats.Duplicates, 1)
			return
		}
		l.lastIn = f.Seq
	}
	l.dispatch(f, raw)
}

func (l *Link) dispatch(f frame.Frame, raw []byte) {
	h := l.handlers[f.Cmd]
	switch {
	case h.isr != nil:
		h.isr.HandleFrameISR(&l.isr, f)
	case h.task != nil && l.rxTask:
		l.pending = append(l.pending, append([]byte(nil), raw...))
	case h.task != nil:
		var in inbound
		in.n = copy(in.buf[:], raw)
		select {
		case l.inbound <- in:
		default:
			l.raise(Report{Kind: ReportHandlerOverflow, Cmd: f.Cmd, Seq: f.Seq})
		}
	case f.Cmd == CmdError:
		perr := &PeerError{}
		if len(f.Payload) > 0 {
			perr.Code = f.Payload[0]
			perr.Detail = append([]byte(nil), f.Payload[1:]...)
		}
		l.raise(Report{Kind: ReportPeerError, Cmd: f.Cmd, Seq: f.Seq, Err: perr})
	default:
		l.raise(Report{Kind: ReportUnknownCommand, Cmd: f.Cmd, Seq: f.Seq, Err: UnknownCommandError(f.Cmd)})
		l.sendError(ErrCodeUnknownCommand, f.Cmd)
	}
}

func (l *Link) resolveAck(seq frame.Seq) {
	if !seq.IsValid() {
		return
	}
	l.acks.Record(seq, time.Now())
	if frame.Seq(atomic.LoadUint32(&l.waiting)) == seq {
		select {
		case l.ackWake <- seq:
		default:
		}
	}
}

func (l *Link) sendAck(seq frame.Seq) {
	payload := [1]byte{byte(seq)}
	l.expedite(CmdAck, payload[:])
}

func (l *Link) sendError(code, detail byte) {
	payload := [2]byte{code, detail}
	l.expedite(CmdError, payload[:])
}

// expedite transmits a frame right away if the line is free, otherwise
// queues it ahead of ordinary traffic.
func (l *Link) expedite(cmd byte, payload []byte) {
	var pf prioFrame
	n, err := frame.Put(pf.buf[:], l.conf.SenderID, l.curSeq(), cmd, payload)
	if err != nil {
		return
	}
	pf.n = n
	if l.tryLock() {
		copy(l.ackBuf[:], pf.buf[:n])
		if err := l.line.StartTx(l.ackBuf[:n], l.release); err == nil {
			atomic.AddUint64(&l.stats.FramesOut, 1)
			return
		}
		l.unlock()
	}
	select {
	case l.prio <- pf:
	default:
		atomic.AddUint64(&l.stats.AcksDropped, 1)
		l.raise(Report{Kind: ReportAckDropped, Cmd: cmd, Seq: frame.Seq(payload[0])})
	}
}
