package line

import (
	"sync"
	"sync/atomic"
)

// DMA emulates a receive DMA channel writing into a circular buffer.
// The interrupt is raised when the write cursor reaches half of the
// buffer or its end, and once more after every Write (idle line).
// The interrupt runs on the writing goroutine with the channel locked,
// so it is never re-entered.
type DMA struct {
	buf    []byte
	cursor int32
	irq    func()
	lock   sync.Mutex
}

// NewDMA creates a DMA with a buffer of size bytes.
func NewDMA(size int) *DMA {
	if size < 2 {
		size = 2
	}
	return &DMA{buf: make([]byte, size)}
}

// RxBuffer returns the circular buffer.
func (d *DMA) RxBuffer() []byte {
	return d.buf
}

// RxCursor returns the current write offset. It reads len(RxBuffer())
// only while the interrupt for a full buffer runs.
func (d *DMA) RxCursor() int {
	return int(atomic.LoadInt32(&d.cursor))
}

// Attach installs the interrupt.
func (d *DMA) Attach(irq func()) {
	d.lock.Lock()
	d.irq = irq
	d.lock.Unlock()
}

// Write stores p as received bytes. It never fails, old bytes are
// overwritten if the interrupt doesn't keep up.
func (d *DMA) Write(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	size := len(d.buf)
	half := size / 2
	pos := int(d.cursor)
	for written := 0; written < len(p); {
		limit := half
		if pos >= half {
			limit = size
		}
		n := copy(d.buf[pos:limit], p[written:])
		written += n
		pos += n
		atomic.StoreInt32(&d.cursor, int32(pos))
		if pos == half || pos == size {
			d.raise()
		}
		if pos == size {
			pos = 0
			atomic.StoreInt32(&d.cursor, 0)
		}
	}
	d.raise()
	return len(p), nil
}

func (d *DMA) raise() {
	if d.irq != nil {
		d.irq()
	}
}
