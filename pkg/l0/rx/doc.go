// Package rx turns bytes landing in a circular receive buffer into frames.
//
// Reassembler converts the buffer's advancing write cursor into linear
// spans. Resynchronizer stages those spans and extracts every complete,
// checksum-valid frame, discarding garbage and bounding memory when the
// line is backlogged. Both are meant to run in interrupt context: they
// never block and never allocate after construction.
package rx
