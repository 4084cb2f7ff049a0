// Package serial provides a line over a serial port.
package serial

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	fx "github.com/robotalks/framelink/pkg/framework"
	"github.com/robotalks/framelink/pkg/l0/line"
)

// DefaultReadTimeout makes reads return on an idle line.
const DefaultReadTimeout = 100 * time.Millisecond

// Line feeds bytes read from a port into an emulated receive DMA.
type Line struct {
	*line.DMA

	port io.ReadWriteCloser
}

// New wraps an opened port.
func New(port io.ReadWriteCloser, rxSize int) *Line {
	return &Line{DMA: line.NewDMA(rxSize), port: port}
}

// Open opens a serial device.
func Open(dev string, baud int, rxSize int) (*Line, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        dev,
		Baud:        baud,
		ReadTimeout: DefaultReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return New(port, rxSize), nil
}

// StartTx implements the transmit primitive of a line.
func (l *Line) StartTx(p []byte, done func(error)) error {
	go func() {
		_, err := l.port.Write(p)
		done(err)
	}()
	return nil
}

// Run reads from the port until ctx is done. The port is closed on exit.
func (l *Line) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, l.port, func() error {
		buf := make([]byte, 64)
		for {
			n, err := l.port.Read(buf)
			if n > 0 {
				glog.V(3).Infof("serial: read % x", buf[:n])
				l.DMA.Write(buf[:n])
			}
			// a read timeout shows up as EOF.
			if err != nil && err != io.EOF {
				return err
			}
		}
	})
}
