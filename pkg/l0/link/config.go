package link

import "time"

// Backoff returns how long to wait for an acknowledgement after the
// given attempt (1-based) before retransmitting.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles the wait with each attempt, starting at base.
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << uint(attempt-1)
	}
}

// ShiftBackoff waits unit << attempt.
func ShiftBackoff(unit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		return unit << uint(attempt)
	}
}

// FixedBackoff waits the same time after every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration {
		return d
	}
}

// BudgetBackoff spreads a total retry budget evenly over attempts.
func BudgetBackoff(budget time.Duration, attempts int) Backoff {
	if attempts < 1 {
		attempts = 1
	}
	return FixedBackoff(budget / time.Duration(attempts))
}

// Config holds the static parameters of a link.
type Config struct {
	// SenderID is put in every outgoing frame.
	SenderID byte
	// StageSize is the capacity of the staging buffer.
	StageSize int
	// QueueDepth is the capacity of the transmit queue.
	QueueDepth int
	// PriorityDepth is the capacity of the side queue for
	// acknowledgements and error reports.
	PriorityDepth int
	// AckRingSize is the number of recent acknowledgements remembered.
	AckRingSize int
	// MaxAttempts is the number of transmissions of a frame before
	// giving up.
	MaxAttempts int
	// Interval is the base acknowledgement wait, used when Backoff is nil.
	Interval time.Duration
	// Backoff computes the acknowledgement wait per attempt.
	Backoff Backoff
	// AckGrace extends a timed out acknowledgement wait once, catching
	// an acknowledgement recorded just after the timer fired.
	// Negative disables it.
	AckGrace time.Duration
	// TxTimeout bounds the wait for the line's transmit completion.
	TxTimeout time.Duration
	// ResourceTimeout bounds the acquisition of a shared resource.
	ResourceTimeout time.Duration
	// HandlerQueue is the capacity of the queue feeding task handlers
	// with frames completed in interrupt context.
	HandlerQueue int
	// ReportQueue is the capacity of the report queue.
	ReportQueue int
	// TraceSize is the number of received bytes kept for diagnostics,
	// 0 disables the trace.
	TraceSize int64
}

// DefaultConfig returns the default link parameters.
func DefaultConfig() Config {
	return Config{
		SenderID:        1,
		StageSize:       512,
		QueueDepth:      16,
		PriorityDepth:   8,
		AckRingSize:     8,
		MaxAttempts:     3,
		Interval:        50 * time.Millisecond,
		AckGrace:        5 * time.Millisecond,
		TxTimeout:       time.Second,
		ResourceTimeout: 100 * time.Millisecond,
		HandlerQueue:    8,
		ReportQueue:     32,
		TraceSize:       1024,
	}
}

// normalize fills zero values with defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.StageSize <= 0 {
		c.StageSize = def.StageSize
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = def.QueueDepth
	}
	if c.PriorityDepth <= 0 {
		c.PriorityDepth = def.PriorityDepth
	}
	if c.AckRingSize <= 0 {
		c.AckRingSize = def.AckRingSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Backoff == nil {
		c.Backoff = ExponentialBackoff(c.Interval)
	}
	if c.AckGrace == 0 {
		c.AckGrace = def.AckGrace
	} else if c.AckGrace < 0 {
		c.AckGrace = 0
	}
	if c.TxTimeout <= 0 {
		c.TxTimeout = def.TxTimeout
	}
	if c.ResourceTimeout <= 0 {
		c.ResourceTimeout = def.ResourceTimeout
	}
	if c.HandlerQueue <= 0 {
		c.HandlerQueue = def.HandlerQueue
	}
	if c.ReportQueue <= 0 {
		c.ReportQueue = def.ReportQueue
	}
	if c.TraceSize < 0 {
		c.TraceSize = 0
	}
	return c
}
