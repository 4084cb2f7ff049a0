// Package link implements a reliable frame link over a serial line.
//
// Each Link owns a transmit queue served by a send task which keeps at
// most one transmission in flight, waits for the peer's acknowledgement
// and retransmits with backoff. Received bytes are pulled from the
// line's circular buffer in interrupt context (see ISR), resynchronized
// into frames and dispatched to registered command handlers.
//
// Two entry points exist for most operations: methods on *Link may
// block and take a context, methods on *ISR never block and are the
// only ones line callbacks are allowed to use.
package link
