package frame

// Seq defines the type of frame sequence number.
// 0 is reserved to mean "no prior frame".
type Seq byte

// Next calculates the next sequence number, wrapping 255 to 1.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if n == 0 {
		n = 1
	}
	return Seq(n)
}

// IsValid checks if it's a valid sequence number.
func (s Seq) IsValid() bool {
	return s != 0
}
