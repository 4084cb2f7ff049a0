package link

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

// solicitsAck is false for frames the peer never answers.
func solicitsAck(cmd byte) bool {
	return cmd != CmdAck && cmd != CmdError
}

func (l *Link) runSender(ctx context.Context) error {
	defer l.drainQueue()
	for {
		if !l.flushPriority(ctx) {
			return ctx.Err()
		}
		select {
		case pf := <-l.prio:
			l.sendPriority(ctx, pf)
		case d := <-l.txq:
			l.deliver(ctx, d)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drainQueue fails deliveries left behind when the send task stops.
func (l *Link) drainQueue() {
	for {
		select {
		case d := <-l.txq:
			d.finish(StateFailed, ErrClosed)
		default:
			return
		}
	}
}

// flushPriority sends everything in the priority queue, false if ctx is done.
func (l *Link) flushPriority(ctx context.Context) bool {
	for {
		select {
		case pf := <-l.prio:
			l.sendPriority(ctx, pf)
		default:
			return ctx.Err() == nil
		}
	}
}

func (l *Link) sendPriority(ctx context.Context, pf prioFrame) {
	n := copy(l.prioBuf[:], pf.buf[:pf.n])
	if err := l.transmit(ctx, l.prioBuf[:n]); err != nil && ctx.Err() == nil {
		l.raise(Report{Kind: ReportTransmitFailure, Cmd: l.prioBuf[frame.OffCmd], Seq: frame.Seq(l.prioBuf[frame.OffSeq]), Err: err})
	}
}

// deliver runs one frame through transmission, acknowledgement and retries.
func (l *Link) deliver(ctx context.Context, d *Delivery) {
	if d.cancelled() {
		d.finish(StateCancelled, ErrCancelled)
		return
	}
	for attempt := 1; ; attempt++ {
		if !l.flushPriority(ctx) {
			d.finish(StateFailed, ErrClosed)
			return
		}
		d.setState(StateTransmitting)
		atomic.StoreInt32(&d.attempts, int32(attempt))
		glog.V(2).Infof("link %s: transmit cmd=%#02x seq=%d attempt=%d", l.name, d.cmd, d.seq, attempt)
		err := l.transmitDelivery(ctx, d)
		if ctx.Err() != nil {
			d.finish(StateFailed, ErrClosed)
			return
		}
		wait := l.conf.Backoff(attempt)
		if err != nil {
			l.raise(Report{Kind: ReportTransmitFailure, Cmd: d.cmd, Seq: d.seq, Attempt: attempt, Err: err})
			if !l.sleep(ctx, d, wait) {
				l.abort(ctx, d)
				return
			}
		} else if !solicitsAck(d.cmd) {
			l.succeed(d)
			return
		} else {
			d.setState(StateAwaitingAck)
			acked, ok := l.awaitAck(ctx, d, wait)
			if !ok {
				l.abort(ctx, d)
				return
			}
			if acked {
				l.succeed(d)
				return
			}
			err = ErrNoAck
		}
		if attempt >= l.conf.MaxAttempts {
			atomic.AddUint64(&l.stats.Exhausted, 1)
			l.raise(Report{Kind: ReportRetriesExhausted, Cmd: d.cmd, Seq: d.seq, Attempt: attempt, Err: err})
			d.finish(StateExhausted, err)
			return
		}
		d.setState(StateRetrying)
		atomic.AddUint64(&l.stats.Retries, 1)
		if attempt <= 2 {
			l.raise(Report{Kind: ReportRetry, Cmd: d.cmd, Seq: d.seq, Attempt: attempt, Err: err})
		}
	}
}

func (l *Link) succeed(d *Delivery) {
	atomic.AddUint64(&l.stats.Delivered, 1)
	d.finish(StateAcknowledged, nil)
}

func (l *Link) abort(ctx context.Context, d *Delivery) {
	if ctx.Err() != nil {
		d.finish(StateFailed, ErrClosed)
		return
	}
	d.finish(StateCancelled, ErrCancelled)
}

func (l *Link) transmitDelivery(ctx context.Context, d *Delivery) error {
	if r := d.resource; r != nil {
		rctx, cancel := context.WithTimeout(ctx, l.conf.ResourceTimeout)
		err := r.Acquire(rctx)
		cancel()
		if err != nil {
			return ErrResourceTimeout
		}
		defer r.Release()
	}
	if d.since.IsZero() {
		d.since = time.Now()
	}
	return l.transmit(ctx, d.raw)
}

// transmit takes the transmission lock, starts the transmission and
// waits for the line to complete it. The lock is released by the
// completion callback.
func (l *Link) transmit(ctx context.Context, p []byte) error {
	timer := time.NewTimer(l.conf.TxTimeout)
	defer timer.Stop()
	select {
	case l.txLock <- struct{}{}:
	case <-timer.C:
		// the holder never completed, take the line back.
		l.unlock()
		return &TransmitError{Err: ErrTxTimeout}
	case <-ctx.Done():
		return ctx.Err()
	}
	done := make(chan error, 1)
	err := l.line.StartTx(p, func(err error) {
		l.unlock()
		done <- err
	})
	if err != nil {
		l.unlock()
		return &TransmitError{Err: err}
	}
	atomic.AddUint64(&l.stats.FramesOut, 1)
	select {
	case err = <-done:
		if err != nil {
			return &TransmitError{Err: err}
		}
		return nil
	case <-timer.C:
		l.unlock()
		return &TransmitError{Err: ErrTxTimeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitAck waits up to wait, plus the ack grace, for the acknowledgement
// of d. ok is false when d is cancelled or ctx is done.
func (l *Link) awaitAck(ctx context.Context, d *Delivery, wait time.Duration) (acked, ok bool) {
	// drop a wake-up left over from an earlier frame.
	select {
	case <-l.ackWake:
	default:
	}
	atomic.StoreUint32(&l.waiting, uint32(d.seq))
	defer atomic.StoreUint32(&l.waiting, 0)
	if l.acks.Find(d.seq, d.since) {
		return true, true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	grace := l.conf.AckGrace
	for {
		select {
		case seq := <-l.ackWake:
			if seq == d.seq {
				return true, true
			}
		case pf := <-l.prio:
			l.sendPriority(ctx, pf)
		case <-timer.C:
			// the wake-up may have lost the race against the timer.
			if l.acks.Find(d.seq, d.since) {
				return true, true
			}
			if grace <= 0 {
				return false, true
			}
			timer.Reset(grace)
			grace = 0
		case <-d.cancelCh:
			return false, false
		case <-ctx.Done():
			return false, false
		}
	}
}

// sleep waits out the backoff after a failed transmission.
func (l *Link) sleep(ctx context.Context, d *Delivery, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case pf := <-l.prio:
			l.sendPriority(ctx, pf)
		case <-d.cancelCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
