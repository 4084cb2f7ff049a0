package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestLineRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		received <- msg
		websocket.Message.Send(conn, []byte{0x69, 0xaa, 3})
	}))
	defer srv.Close()

	l, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), 32)
	require.NoError(t, err)
	events := make(chan int, 4)
	l.Attach(func() { events <- l.RxCursor() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	done := make(chan error, 1)
	require.NoError(t, l.StartTx([]byte{1, 2, 3}, func(err error) { done <- err }))
	require.NoError(t, <-done)
	require.Equal(t, []byte{1, 2, 3}, <-received)

	select {
	case cur := <-events:
		require.Equal(t, 3, cur)
		require.Equal(t, []byte{0x69, 0xaa, 3}, l.RxBuffer()[:3])
	case <-time.After(time.Second):
		t.Fatal("nothing received")
	}
}
