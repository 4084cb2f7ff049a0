package rx

// Reassembler tracks the consumed position of a circular receive buffer.
type Reassembler struct {
	capacity int
	last     int
}

// NewReassembler creates a Reassembler for a buffer of capacity bytes.
func NewReassembler(capacity int) *Reassembler {
	return &Reassembler{capacity: capacity}
}

// Capacity returns the size of the circular buffer.
func (r *Reassembler) Capacity() int {
	return r.capacity
}

// Last returns the last consumed cursor.
func (r *Reassembler) Last() int {
	return r.last
}

// Reset rewinds the consumed cursor to the buffer start.
func (r *Reassembler) Reset() {
	r.last = 0
}

// Advance emits the bytes written to buf since the previous call, given
// the current write cursor (0..capacity). A wrapped write is emitted as
// two spans in arrival order. Spans alias buf.
func (r *Reassembler) Advance(buf []byte, current int, emit func([]byte)) {
	if current < 0 || current > r.capacity {
		return
	}
	switch {
	case current > r.last:
		emit(buf[r.last:current])
	case current < r.last:
		emit(buf[r.last:r.capacity])
		if current > 0 {
			emit(buf[:current])
		}
	}
	if current == r.capacity {
		current = 0
	}
	r.last = current
}
