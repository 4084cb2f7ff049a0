package frame

import "github.com/sigurn/crc8"

// CRC-8/SMBUS: poly 0x07, zero init, no reflection, no final xor.
// The zero init/xor is what makes the trailer self-cancelling.
var crcTable = crc8.MakeTable(crc8.CRC8)

// Checksum computes the frame checksum over b.
func Checksum(b []byte) byte {
	return crc8.Checksum(b, crcTable)
}
