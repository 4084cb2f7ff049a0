package serial

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type chanPort struct {
	readCh  chan []byte
	writeCh chan []byte
	closed  chan struct{}
}

func newChanPort() *chanPort {
	return &chanPort{
		readCh:  make(chan []byte, 4),
		writeCh: make(chan []byte, 4),
		closed:  make(chan struct{}),
	}
}

func (p *chanPort) Read(b []byte) (int, error) {
	select {
	case data := <-p.readCh:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.ErrClosedPipe
	}
}

func (p *chanPort) Write(b []byte) (int, error) {
	p.writeCh <- append([]byte(nil), b...)
	return len(b), nil
}

func (p *chanPort) Close() error {
	close(p.closed)
	return nil
}

func TestLineReadsIntoBuffer(t *testing.T) {
	port := newChanPort()
	l := New(port, 16)
	events := make(chan int, 8)
	l.Attach(func() { events <- l.RxCursor() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	port.readCh <- []byte{1, 2, 3}
	select {
	case cur := <-events:
		require.Equal(t, 3, cur)
	case <-time.After(time.Second):
		t.Fatal("no rx event")
	}
	require.Equal(t, []byte{1, 2, 3}, l.RxBuffer()[:3])

	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestLineTransmits(t *testing.T) {
	port := newChanPort()
	l := New(port, 16)
	done := make(chan error, 1)
	require.NoError(t, l.StartTx([]byte{0x69, 0xaa}, func(err error) { done <- err }))
	require.Equal(t, []byte{0x69, 0xaa}, <-port.writeCh)
	require.NoError(t, <-done)
}
