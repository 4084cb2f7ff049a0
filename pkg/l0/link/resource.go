package link

import "context"

// Resource is a capability shared with other links, held around the
// physical transmission of a frame.
type Resource interface {
	Acquire(ctx context.Context) error
	Release()
}

// Semaphore is a Resource admitting a fixed number of holders.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a Semaphore with n slots.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire implements Resource.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without waiting.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release implements Resource.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}
