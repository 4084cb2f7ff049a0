package rx

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/framelink/pkg/l0/frame"
)

type frameRecorder struct {
	frames []frame.Frame
}

func (r *frameRecorder) HandleFrame(b []byte) {
	f, err := frame.Decode(append([]byte{}, b...))
	if err != nil {
		panic(err)
	}
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) seqs() (seqs []frame.Seq) {
	for _, f := range r.frames {
		seqs = append(seqs, f.Seq)
	}
	return
}

func mustEncode(t *testing.T, seq frame.Seq, cmd byte, payload ...byte) []byte {
	b, err := frame.Encode(0x10, seq, cmd, payload)
	require.NoError(t, err)
	return b
}

func garbage(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		for {
			b[i] = byte(r.Intn(256))
			if b[i] != frame.Sync1 {
				break
			}
		}
	}
	return b
}

func concat(parts ...[]byte) (b []byte) {
	for _, p := range parts {
		b = append(b, p...)
	}
	return
}

func newTestResync(capacity int) (*Resynchronizer, *frameRecorder) {
	rec := &frameRecorder{}
	return NewResynchronizer(capacity, rec), rec
}

func TestResyncWholeFrameSkipsStage(t *testing.T) {
	r, rec := newTestResync(0)
	r.Feed(mustEncode(t, 1, 0x20, 1, 2, 3))
	require.Equal(t, []frame.Seq{1}, rec.seqs())
	require.Equal(t, []byte{1, 2, 3}, rec.frames[0].Payload)
	require.Empty(t, r.Staged())
}

func TestResyncSeveralWholeFrames(t *testing.T) {
	r, rec := newTestResync(0)
	r.Feed(concat(mustEncode(t, 1, 0x20), mustEncode(t, 2, 0x20, 9), mustEncode(t, 3, 0x21)))
	require.Equal(t, []frame.Seq{1, 2, 3}, rec.seqs())
	require.Empty(t, r.Staged())
}

func TestResyncSplitFrame(t *testing.T) {
	r, rec := newTestResync(0)
	b := mustEncode(t, 5, 0x30, 1, 2, 3, 4, 5, 6, 7, 8)
	r.Feed(b[:1])
	r.Feed(b[1:4])
	require.Empty(t, rec.frames)
	r.Feed(b[4:10])
	require.Empty(t, rec.frames)
	r.Feed(b[10:])
	require.Equal(t, []frame.Seq{5}, rec.seqs())
	require.Empty(t, r.Staged())
}

func TestResyncFramesWithPartialTail(t *testing.T) {
	r, rec := newTestResync(0)
	a, b, c := mustEncode(t, 1, 0x20, 1), mustEncode(t, 2, 0x20, 2), mustEncode(t, 3, 0x20, 3)
	r.Feed(concat([]byte{0x00, 0x01}, a, b, c[:5]))
	require.Equal(t, []frame.Seq{1, 2}, rec.seqs())
	require.Equal(t, c[:5], r.Staged())
	r.Feed(c[5:])
	require.Equal(t, []frame.Seq{1, 2, 3}, rec.seqs())
	require.Empty(t, r.Staged())
}

func TestResyncGarbageThenFrame(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	b := mustEncode(t, 7, 0x40, 0xde, 0xad)
	stream := concat(garbage(rnd, 500), b)

	t.Run("single span", func(t *testing.T) {
		r, rec := newTestResync(0)
		r.Feed(stream)
		require.Equal(t, []frame.Seq{7}, rec.seqs())
		require.Empty(t, r.Staged())
	})

	t.Run("chunked", func(t *testing.T) {
		for _, size := range []int{1, 3, 16, 37, 64, 255} {
			r, rec := newTestResync(0)
			for off := 0; off < len(stream); off += size {
				end := off + size
				if end > len(stream) {
					end = len(stream)
				}
				r.Feed(stream[off:end])
			}
			require.Equalf(t, []frame.Seq{7}, rec.seqs(), "chunk size %d", size)
			require.Emptyf(t, r.Staged(), "chunk size %d", size)
			require.Equal(t, uint64(500), r.Stats().Dropped)
		}
	})
}

func TestResyncDuplicatesPassThrough(t *testing.T) {
	r, rec := newTestResync(0)
	b := mustEncode(t, 9, 0x20, 1)
	r.Feed(concat([]byte{0x55}, b, b))
	r.Feed(b)
	require.Equal(t, []frame.Seq{9, 9, 9}, rec.seqs())
}

func TestResyncCorruptedFrameSkipped(t *testing.T) {
	r, rec := newTestResync(0)
	bad := mustEncode(t, 1, 0x20, 1, 2, 3)
	bad[len(bad)-2] ^= 0x01
	good := mustEncode(t, 2, 0x20, 4)
	r.Feed(concat([]byte{0x00}, bad, good))
	require.Equal(t, []frame.Seq{2}, rec.seqs())
	require.Equal(t, uint64(1), r.Stats().Malformed)
	require.Empty(t, r.Staged())
}

func TestResyncFakeHeaderResolvedLater(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	r, rec := newTestResync(0)
	// a fake header announcing a 40 byte frame stalls the scan.
	fake := []byte{0x00, frame.Sync1, frame.Sync2, 36, 1, 2, 3, 4}
	r.Feed(fake)
	require.Equal(t, fake[1:], r.Staged())

	good := mustEncode(t, 3, 0x20, 1, 2)
	lead := garbage(rnd, 10)
	r.Feed(concat(lead, good))
	require.Empty(t, rec.frames)

	// make sure the fake frame can't pass the checksum by accident.
	staged := concat(fake[1:], lead, good, garbage(rnd, 40))
	staged[39] = frame.Checksum(staged[frame.OffBody:39]) ^ 0xff
	r.Feed(staged[len(fake)-1+len(lead)+len(good):])
	require.Equal(t, []frame.Seq{3}, rec.seqs())
	require.Empty(t, r.Staged())
}

func TestResyncKeepsSplitSyncByte(t *testing.T) {
	r, rec := newTestResync(0)
	b := mustEncode(t, 4, 0x20, 1, 2, 3)
	r.Feed(concat([]byte{1, 2, 3, 4, 5, 6, 7, 8}, b[:1]))
	require.Equal(t, b[:1], r.Staged())
	r.Feed(b[1:])
	require.Equal(t, []frame.Seq{4}, rec.seqs())
}

func TestResyncHeaderlessTailDiscarded(t *testing.T) {
	r, rec := newTestResync(0)
	r.Feed([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.Empty(t, rec.frames)
	require.Empty(t, r.Staged())
	require.Equal(t, uint64(10), r.Stats().Dropped)
}

func TestResyncBacklogSlides(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	r, _ := newTestResync(0)
	// a stalled fake header keeps 100 bytes staged.
	lead := concat([]byte{frame.Sync1, frame.Sync2, 0xff}, garbage(rnd, 97))
	r.Feed(lead)
	require.Len(t, r.Staged(), 100)

	r.Feed(garbage(rnd, 200))
	require.Empty(t, r.Staged())
	require.Equal(t, uint64(300), r.Stats().Dropped)
}

func TestResyncBacklogSlidesOldestOut(t *testing.T) {
	rnd := rand.New(rand.NewSource(5))
	r, rec := newTestResync(0)
	lead := concat([]byte{frame.Sync1, frame.Sync2, 0xff}, garbage(rnd, 197))
	r.Feed(lead)
	require.Len(t, r.Staged(), 200)

	good := mustEncode(t, 8, 0x20, 1)
	r.Feed(concat(garbage(rnd, 100-len(good)), good))
	require.Equal(t, []frame.Seq{8}, rec.seqs())
	require.Empty(t, r.Staged())
}

func TestResyncBacklogReplacesStage(t *testing.T) {
	rnd := rand.New(rand.NewSource(9))
	r, rec := newTestResync(0)
	lead := concat([]byte{frame.Sync1, frame.Sync2, 0xff}, garbage(rnd, 197))
	r.Feed(lead)

	b := mustEncode(t, 6, 0x20, garbage(rnd, 80)...)
	r.Feed(b[:70])
	require.Equal(t, b[:70], r.Staged())
	r.Feed(b[70:])
	require.Equal(t, []frame.Seq{6}, rec.seqs())
	require.Equal(t, uint64(200), r.Stats().Dropped)
}

func TestResyncBacklogDrainsInvalidWholeFrame(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	r, rec := newTestResync(0)
	lead := concat([]byte{frame.Sync1, frame.Sync2, 0xff}, garbage(rnd, 197))
	r.Feed(lead)

	bad := mustEncode(t, 1, 0x20, garbage(rnd, 60)...)
	bad[10] ^= 0x80
	good := mustEncode(t, 2, 0x20, 7)
	r.Feed(concat(bad, good))
	require.Equal(t, []frame.Seq{2}, rec.seqs())
	require.Equal(t, uint64(1), r.Stats().Malformed)
	require.Empty(t, r.Staged())
}

func TestResyncOversizedSpan(t *testing.T) {
	rnd := rand.New(rand.NewSource(13))
	r, rec := newTestResync(0)
	good := mustEncode(t, 2, 0x20, 7)
	r.Feed(concat(garbage(rnd, 1000), good, garbage(rnd, 3)))
	require.Equal(t, []frame.Seq{2}, rec.seqs())
	require.Empty(t, r.Staged())
}
