// Package line contains the pieces shared by line implementations.
//
// A line is the hardware side of a link: a circular receive buffer with
// an advancing write cursor, an interrupt raised when the buffer is half
// full or the line goes idle, and a non-blocking transmit primitive
// signalling completion exactly once. DMA emulates the receive side for
// lines backed by a plain byte stream.
package line
