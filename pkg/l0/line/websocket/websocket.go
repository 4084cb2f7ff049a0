// Package websocket provides a line over a websocket connection, used
// to reach boards behind bench bridges and simulators.
package websocket

import (
	"context"
	"net/url"

	"golang.org/x/net/websocket"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/l0/line"
)

// Line receives websocket messages into an emulated receive DMA and
// transmits every frame as one message.
type Line struct {
	*line.DMA

	conn *websocket.Conn
}

// New wraps an established connection.
func New(conn *websocket.Conn, rxSize int) *Line {
	return &Line{DMA: line.NewDMA(rxSize), conn: conn}
}

// Dial connects to a websocket URL.
func Dial(rawURL string, rxSize int) (*Line, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := &url.URL{Scheme: "http", Host: u.Host}
	if u.Scheme == "wss" {
		origin.Scheme = "https"
	}
	conn, err := websocket.Dial(rawURL, "", origin.String())
	if err != nil {
		return nil, err
	}
	return New(conn, rxSize), nil
}

// StartTx implements the transmit primitive of a line.
func (l *Line) StartTx(p []byte, done func(error)) error {
	go func() {
		done(websocket.Message.Send(l.conn, p))
	}()
	return nil
}

// Run receives messages until ctx is done or the connection closes.
func (l *Line) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, l.conn, func() error {
		for {
			var msg []byte
			if err := websocket.Message.Receive(l.conn, &msg); err != nil {
				return err
			}
			l.DMA.Write(msg)
		}
	})
}
