package link

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/circbuf"
	"github.com/golang/glog"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/l0/frame"
	"github.com/robotalks/framelink/pkg/l0/rx"
)

// Line is the hardware collaborator of a Link.
type Line interface {
	// RxBuffer returns the circular buffer the line receives into.
	RxBuffer() []byte
	// RxCursor returns the current write offset into RxBuffer.
	RxCursor() int
	// StartTx starts transmitting p without blocking. done is called
	// exactly once when the transmission completes or fails, p must stay
	// untouched until then.
	StartTx(p []byte, done func(error)) error
	// Attach installs the receive interrupt, raised on idle line and
	// when the receive buffer is half full.
	Attach(irq func())
}

// Stats are counters of a link.
type Stats struct {
	BytesIn        uint64
	FramesIn       uint64
	FramesOut      uint64
	Duplicates     uint64
	Delivered      uint64
	Retries        uint64
	Exhausted      uint64
	QueueFull      uint64
	AcksDropped    uint64
	ReportsDropped uint64
	Malformed      uint64
	DroppedBytes   uint64
}

type prioFrame struct {
	n   int
	buf [frame.MaxLen]byte
}

type inbound struct {
	n   int
	buf [frame.MaxLen]byte
}

// Link is a reliable frame link over a Line.
type Link struct {
	// accessed atomically, keep first for alignment.
	stats Stats

	// Reporter receives reports, LogReporter if nil. Set before Run.
	Reporter Reporter

	name     string
	line     Line
	conf     Config
	isr      ISR
	handlers [256]handler
	running  int32
	seq      uint32

	txq     chan *Delivery
	prio    chan prioFrame
	txLock  chan struct{}
	prioBuf [frame.MaxLen]byte
	ackBuf  [frame.MaxLen]byte
	release func(error)

	waiting uint32
	ackWake chan frame.Seq
	acks    *AckRing

	rxLock  sync.Mutex
	reasm   *rx.Reassembler
	resync  *rx.Resynchronizer
	feedFn  func([]byte)
	lastIn  frame.Seq
	rxTask  bool
	pending [][]byte
	trace   *circbuf.Buffer

	inbound chan inbound
	reports chan Report
}

// New creates a Link over line and attaches to its receive interrupt.
func New(name string, line Line, conf Config) *Link {
	conf = conf.normalize()
	l := &Link{
		name:    name,
		line:    line,
		conf:    conf,
		txq:     make(chan *Delivery, conf.QueueDepth),
		prio:    make(chan prioFrame, conf.PriorityDepth),
		txLock:  make(chan struct{}, 1),
		ackWake: make(chan frame.Seq, 1),
		acks:    NewAckRing(conf.AckRingSize),
		reasm:   rx.NewReassembler(len(line.RxBuffer())),
		inbound: make(chan inbound, conf.HandlerQueue),
		reports: make(chan Report, conf.ReportQueue),
	}
	l.isr.l = l
	l.resync = rx.NewResynchronizer(conf.StageSize, rx.HandleFrameFunc(l.onFrame))
	l.feedFn = l.feed
	l.release = func(error) { l.unlock() }
	if conf.TraceSize > 0 {
		l.trace, _ = circbuf.NewBuffer(conf.TraceSize)
	}
	line.Attach(l.isr.RxEvent)
	return l
}

// Name returns the name of the link.
func (l *Link) Name() string {
	return l.name
}

// Config returns the effective configuration.
func (l *Link) Config() Config {
	return l.conf
}

// ISR returns the interrupt-context handle.
func (l *Link) ISR() *ISR {
	return &l.isr
}

// Acks returns the acknowledgement ring.
func (l *Link) Acks() *AckRing {
	return l.acks
}

// QueueLen returns the number of frames waiting in the transmit queue.
func (l *Link) QueueLen() int {
	return len(l.txq)
}

// Stats returns a snapshot of the counters.
func (l *Link) Stats() Stats {
	s := Stats{
		BytesIn:        atomic.LoadUint64(&l.stats.BytesIn),
		FramesIn:       atomic.LoadUint64(&l.stats.FramesIn),
		FramesOut:      atomic.LoadUint64(&l.stats.FramesOut),
		Duplicates:     atomic.LoadUint64(&l.stats.Duplicates),
		Delivered:      atomic.LoadUint64(&l.stats.Delivered),
		Retries:        atomic.LoadUint64(&l.stats.Retries),
		Exhausted:      atomic.LoadUint64(&l.stats.Exhausted),
		QueueFull:      atomic.LoadUint64(&l.stats.QueueFull),
		AcksDropped:    atomic.LoadUint64(&l.stats.AcksDropped),
		ReportsDropped: atomic.LoadUint64(&l.stats.ReportsDropped),
	}
	l.rxLock.Lock()
	rs := l.resync.Stats()
	l.rxLock.Unlock()
	s.Malformed, s.DroppedBytes = rs.Malformed, rs.Dropped
	return s
}

// Trace returns a copy of the most recently received bytes.
func (l *Link) Trace() []byte {
	if l.trace == nil {
		return nil
	}
	l.rxLock.Lock()
	defer l.rxLock.Unlock()
	return append([]byte(nil), l.trace.Bytes()...)
}

// Run runs the send task, the handler task and the report task until
// ctx is done. Handlers must be registered before.
func (l *Link) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return ErrRunning
	}
	glog.Infof("link %s: started", l.name)
	err := fx.NewRunnerWith(ctx).Go(
		fx.NamedRun(l.name+"/send", fx.RunFunc(l.runSender)),
		fx.NamedRun(l.name+"/handle", fx.RunFunc(l.runHandlers)),
		fx.NamedRun(l.name+"/report", fx.RunFunc(l.runReports)),
	).Wait()
	glog.Infof("link %s: stopped", l.name)
	return err
}

// SendOption customizes Send.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout  time.Duration
	resource Resource
}

// WithTimeout waits up to d for room in the transmit queue.
// Without it a full queue fails immediately.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = d
	}
}

// WithResource holds r around every transmission of the frame.
func WithResource(r Resource) SendOption {
	return func(o *sendOptions) {
		o.resource = r
	}
}

// Send enqueues a frame. It fails with ErrQueueFull when the queue has
// no room within the timeout given by WithTimeout.
func (l *Link) Send(cmd byte, payload []byte, opts ...SendOption) (*Delivery, error) {
	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}
	d, err := l.newDelivery(cmd, payload)
	if err != nil {
		return nil, err
	}
	d.resource = o.resource
	select {
	case l.txq <- d:
		return d, nil
	default:
	}
	if o.timeout > 0 {
		timer := time.NewTimer(o.timeout)
		defer timer.Stop()
		select {
		case l.txq <- d:
			return d, nil
		case <-timer.C:
		}
	}
	atomic.AddUint64(&l.stats.QueueFull, 1)
	return nil, ErrQueueFull
}

// SendWait enqueues a frame and waits for the delivery to complete.
// If ctx is done first, the delivery is cancelled.
func (l *Link) SendWait(ctx context.Context, cmd byte, payload []byte, opts ...SendOption) error {
	d, err := l.Send(cmd, payload, opts...)
	if err != nil {
		return err
	}
	select {
	case <-d.Done():
		return d.Err()
	case <-ctx.Done():
		d.Cancel()
		return ctx.Err()
	}
}

// Receive feeds bytes received in task context. Task handlers are
// called by the caller before Receive returns.
func (l *Link) Receive(ctx context.Context, span []byte) {
	l.rxLock.Lock()
	l.rxTask = true
	l.feed(span)
	l.rxTask = false
	pending := l.pending
	l.pending = nil
	l.rxLock.Unlock()
	for _, raw := range pending {
		if f, err := frame.Decode(raw); err == nil {
			l.handlers[f.Cmd].task.HandleFrame(ctx, f)
		}
	}
}

func (l *Link) newDelivery(cmd byte, payload []byte) (*Delivery, error) {
	if cmd == CmdAck {
		return nil, ErrReservedCommand
	}
	if len(payload) > frame.MaxPayload {
		return nil, frame.ErrPayloadTooLarge
	}
	return newDelivery(l.conf.SenderID, l.nextSeq(), cmd, payload)
}

// nextSeq allocates the seq of a new outgoing frame.
func (l *Link) nextSeq() frame.Seq {
	for {
		cur := atomic.LoadUint32(&l.seq)
		next := frame.Seq(cur).Next()
		if atomic.CompareAndSwapUint32(&l.seq, cur, uint32(next)) {
			return next
		}
	}
}

// curSeq is used by acknowledgements and error reports. They don't
// advance the counter so they can't push a data frame onto the seq the
// peer saw last.
func (l *Link) curSeq() frame.Seq {
	if s := frame.Seq(atomic.LoadUint32(&l.seq)); s.IsValid() {
		return s
	}
	return 1
}

func (l *Link) tryLock() bool {
	select {
	case l.txLock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *Link) unlock() {
	select {
	case <-l.txLock:
	default:
	}
}

func (l *Link) raise(r Report) {
	r.Link = l.name
	r.Time = time.Now()
	select {
	case l.reports <- r:
	default:
		atomic.AddUint64(&l.stats.ReportsDropped, 1)
	}
}

func (l *Link) reporter() Reporter {
	if l.Reporter != nil {
		return l.Reporter
	}
	return LogReporter
}

func (l *Link) runReports(ctx context.Context) error {
	reporter := l.reporter()
	for {
		select {
		case r := <-l.reports:
			reporter.Report(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-l.reports:
					reporter.Report(r)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

func (l *Link) runHandlers(ctx context.Context) error {
	for {
		select {
		case in := <-l.inbound:
			f, err := frame.Decode(in.buf[:in.n])
			if err != nil {
				continue
			}
			glog.V(2).Infof("link %s: handle %s", l.name, f)
			if h := l.handlers[f.Cmd].task; h != nil {
				h.HandleFrame(ctx, f)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
