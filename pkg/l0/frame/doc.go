// Package frame provides the L0 wire codec.
package frame

// A frame is communicated between L0 boards and the host over a byte
// oriented serial line:
//
//   [0x69][0xAA][len][seq][sender][cmd][payload ...][crc]
//
// len counts seq, sender, cmd and the payload, so a frame occupies
// len+4 bytes on the wire. crc is a CRC-8 over sender through payload,
// hence a well-formed frame satisfies CRC8(frame[4:]) == 0. A corrupted
// seq is not caught by the checksum; it only affects ack matching.
//
// Nothing in this package allocates except Encode.
