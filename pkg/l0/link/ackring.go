package link

import (
	"sync"
	"time"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

type ackEntry struct {
	seq frame.Seq
	at  time.Time
}

// AckRing remembers the most recent acknowledgements. Recording
// overwrites the oldest entry.
type AckRing struct {
	entries []ackEntry
	next    int
	lock    sync.Mutex
}

// NewAckRing creates an AckRing of size entries.
func NewAckRing(size int) *AckRing {
	if size < 1 {
		size = 1
	}
	return &AckRing{entries: make([]ackEntry, size)}
}

// Size returns the number of entries.
func (r *AckRing) Size() int {
	return len(r.entries)
}

// Record stores an acknowledgement of seq received at t.
func (r *AckRing) Record(seq frame.Seq, t time.Time) {
	r.lock.Lock()
	r.entries[r.next] = ackEntry{seq: seq, at: t}
	r.next = (r.next + 1) % len(r.entries)
	r.lock.Unlock()
}

// Find is true if seq was acknowledged at or after since.
func (r *AckRing) Find(seq frame.Seq, since time.Time) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, e := range r.entries {
		if e.seq == seq && e.seq.IsValid() && !e.at.Before(since) {
			return true
		}
	}
	return false
}

// Recent returns the recorded sequence numbers, newest first.
func (r *AckRing) Recent() []frame.Seq {
	r.lock.Lock()
	defer r.lock.Unlock()
	var seqs []frame.Seq
	for i := 1; i <= len(r.entries); i++ {
		e := r.entries[(r.next-i+len(r.entries))%len(r.entries)]
		if e.seq.IsValid() {
			seqs = append(seqs, e.seq)
		}
	}
	return seqs
}

// Reset forgets all entries.
func (r *AckRing) Reset() {
	r.lock.Lock()
	for i := range r.entries {
		r.entries[i] = ackEntry{}
	}
	r.next = 0
	r.lock.Unlock()
}
