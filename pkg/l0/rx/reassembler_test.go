package rx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type spanCollector [][]byte

func (c *spanCollector) emit(b []byte) {
	*c = append(*c, append([]byte{}, b...))
}

func TestReassemblerLinear(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	r := NewReassembler(len(buf))
	var spans spanCollector
	r.Advance(buf, 3, spans.emit)
	r.Advance(buf, 5, spans.emit)
	require.Equal(t, [][]byte{{0, 1, 2}, {3, 4}}, [][]byte(spans))
	require.Equal(t, 5, r.Last())
}

func TestReassemblerNoProgress(t *testing.T) {
	buf := make([]byte, 8)
	r := NewReassembler(len(buf))
	var spans spanCollector
	r.Advance(buf, 0, spans.emit)
	require.Empty(t, spans)
	r.Advance(buf, 4, spans.emit)
	r.Advance(buf, 4, spans.emit)
	require.Len(t, spans, 1)
}

func TestReassemblerWrap(t *testing.T) {
	const n = 16
	buf := make([]byte, n)
	r := NewReassembler(n)
	r.Advance(buf, n-3, func([]byte) {})

	written := []byte{0xa1, 0xa2, 0xa3, 0xa4, 0xa5}
	for i, b := range written {
		buf[(n-3+i)%n] = b
	}
	var spans spanCollector
	r.Advance(buf, 2, spans.emit)
	require.Len(t, spans, 2)
	require.Equal(t, written, append(append([]byte{}, spans[0]...), spans[1]...))
	require.Equal(t, 2, r.Last())
}

func TestReassemblerCursorAtCapacity(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	r := NewReassembler(len(buf))
	r.Advance(buf, 2, func([]byte) {})
	var spans spanCollector
	r.Advance(buf, 4, spans.emit)
	require.Equal(t, [][]byte{{3, 4}}, [][]byte(spans))
	require.Equal(t, 0, r.Last())

	spans = nil
	r.Advance(buf, 1, spans.emit)
	require.Equal(t, [][]byte{{1}}, [][]byte(spans))
}

func TestReassemblerWrapToZero(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	r := NewReassembler(len(buf))
	r.Advance(buf, 3, func([]byte) {})
	var spans spanCollector
	r.Advance(buf, 0, spans.emit)
	require.Equal(t, [][]byte{{4}}, [][]byte(spans))
	require.Equal(t, 0, r.Last())
}

func TestReassemblerIgnoresBadCursor(t *testing.T) {
	buf := make([]byte, 4)
	r := NewReassembler(len(buf))
	var spans spanCollector
	r.Advance(buf, 9, spans.emit)
	r.Advance(buf, -1, spans.emit)
	require.Empty(t, spans)
	require.Equal(t, 0, r.Last())
}
