package rx

import "github.com/robotalks/framelink/pkg/l0/frame"

// FrameHandler is called with every complete, checksum-valid frame.
// The slice aliases internal buffers and is only valid during the call.
type FrameHandler interface {
	HandleFrame([]byte)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func([]byte)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(b []byte) {
	f(b)
}

// Stats counts what the Resynchronizer did with the bytes it was fed.
type Stats struct {
	Frames    uint64
	Malformed uint64
	Dropped   uint64
}

// Resynchronizer stages received bytes and extracts frames from them.
type Resynchronizer struct {
	Handler FrameHandler

	stage []byte
	n     int
	stats Stats
}

// NewResynchronizer creates a Resynchronizer with a staging buffer of
// capacity bytes. capacity is raised to frame.MaxLen if smaller so any
// frame fits.
func NewResynchronizer(capacity int, h FrameHandler) *Resynchronizer {
	if capacity < frame.MaxLen {
		capacity = frame.MaxLen
	}
	return &Resynchronizer{Handler: h, stage: make([]byte, capacity)}
}

// Capacity returns the staging buffer size.
func (r *Resynchronizer) Capacity() int {
	return len(r.stage)
}

// Staged returns the unconsumed bytes at the head of the stage.
func (r *Resynchronizer) Staged() []byte {
	return r.stage[:r.n]
}

// Stats returns the counters.
func (r *Resynchronizer) Stats() Stats {
	return r.stats
}

// Reset discards staged bytes.
func (r *Resynchronizer) Reset() {
	r.n = 0
}

// Feed consumes one span of received bytes.
func (r *Resynchronizer) Feed(s []byte) {
	// frames arriving whole never touch the stage.
	for len(s) > 0 {
		n, ok := frame.Complete(s)
		if !ok {
			break
		}
		r.dispatch(s[:n])
		s = s[n:]
	}
	if len(s) == 0 {
		return
	}

	if r.n+len(s) > len(r.stage) {
		if rest, drained := r.admitBacklog(s); drained {
			r.Feed(rest)
			return
		}
	} else {
		r.n += copy(r.stage[r.n:], s)
	}
	r.scan()
}

// admitBacklog makes room for s when the stage would overflow.
func (r *Resynchronizer) admitBacklog(s []byte) ([]byte, bool) {
	if frame.HasHeader(s) {
		if n, ok := frame.Len(s); ok && n >= frame.MinLen && n <= len(s) {
			// a whole frame is present but failed validation.
			r.stats.Malformed++
			r.stats.Dropped += uint64(r.n + n)
			r.n = 0
			return s[n:], true
		}
		if len(s) <= len(r.stage) {
			// the staged lead-in is presumed unrecoverable.
			r.stats.Dropped += uint64(r.n)
			r.n = copy(r.stage, s)
			return nil, false
		}
	}
	r.slide(s)
	return nil, false
}

// slide evicts the oldest len(s) bytes and appends s.
func (r *Resynchronizer) slide(s []byte) {
	k := len(s)
	if k >= len(r.stage) {
		r.stats.Dropped += uint64(r.n + k - len(r.stage))
		r.n = copy(r.stage, s[k-len(r.stage):])
		return
	}
	if k >= r.n {
		r.stats.Dropped += uint64(r.n)
		r.n = 0
	} else {
		copy(r.stage, r.stage[k:r.n])
		r.n -= k
		r.stats.Dropped += uint64(k)
	}
	r.n += copy(r.stage[r.n:], s)
}

func (r *Resynchronizer) scan() {
	if r.n < frame.MinLen {
		return
	}
	i := 0
	for i <= r.n-frame.MinLen {
		buf := r.stage[i:r.n]
		if !frame.HasHeader(buf) {
			r.stats.Dropped++
			i++
			continue
		}
		length, _ := frame.Len(buf)
		if length < frame.MinLen {
			r.stats.Malformed++
			r.stats.Dropped++
			i++
			continue
		}
		if length > len(buf) {
			// may complete with the next span.
			break
		}
		if frame.IsWellFormed(buf, length) {
			r.dispatch(buf[:length])
			i += length
			continue
		}
		r.stats.Malformed++
		r.stats.Dropped++
		i++
	}
	r.compact(i)
}

// compact moves the bytes from offset i to the stage head. The stopping
// offset is moved up to the next header candidate, so a remainder that
// doesn't start with a header is discarded entirely.
func (r *Resynchronizer) compact(i int) {
	j := i
	for j < r.n && !r.headerAt(j) {
		j++
	}
	r.stats.Dropped += uint64(j - i)
	r.n = copy(r.stage, r.stage[j:r.n])
}

// headerAt reports whether a header starts at i, counting a lone
// trailing sync byte whose pair hasn't arrived yet.
func (r *Resynchronizer) headerAt(i int) bool {
	if r.stage[i] != frame.Sync1 {
		return false
	}
	return i+1 == r.n || r.stage[i+1] == frame.Sync2
}

func (r *Resynchronizer) dispatch(b []byte) {
	r.stats.Frames++
	if h := r.Handler; h != nil {
		h.HandleFrame(b)
	}
}
