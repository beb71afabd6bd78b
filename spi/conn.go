// Package spi opens four-wire buses for use with transport.NewSPI, either
// through periph.io or through a Gobot platform adaptor.
package spi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/magnetometer"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// The HMC5983 samples on the rising edge with an idle-high clock and accepts
// up to 8 MHz.
const (
	DefaultMode      = spi.Mode3
	DefaultFrequency = 8 * physic.MegaHertz
)

var _ magnetometer.SPIConn = &Conn{}

// Conn adapts a periph.io connection. The controller drives chip select
// unless a separate magnetometer.ChipSelect is passed to the transport.
type Conn struct {
	conn spi.Conn
	port spi.PortCloser
}

type Option func(*options)

type options struct {
	mode spi.Mode
	freq physic.Frequency
}

func WithMode(mode spi.Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

func WithFrequency(f physic.Frequency) Option {
	return func(o *options) {
		o.freq = f
	}
}

// Open initializes the host drivers and connects to the named port, e.g.
// "/dev/spidev0.0". An empty name opens the first port found.
func Open(name string, opts ...Option) (*Conn, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open spi port: %w", err)
	}
	c, err := Connect(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	c.port = port
	return c, nil
}

// Connect configures an already opened port.
func Connect(port spi.Port, opts ...Option) (*Conn, error) {
	o := options{mode: DefaultMode, freq: DefaultFrequency}
	for _, opt := range opts {
		opt(&o)
	}
	conn, err := port.Connect(o.freq, o.mode, 8)
	if err != nil {
		return nil, fmt.Errorf("could not connect to spi port: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Transfer clocks out w and then reads len(r) bytes in one full-duplex
// transaction.
func (c *Conn) Transfer(ctx context.Context, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r) == 0 {
		if err := c.conn.Tx(w, nil); err != nil {
			return fmt.Errorf("spi write failed: %w", err)
		}
		return nil
	}
	tx := make([]byte, len(w)+len(r))
	copy(tx, w)
	rx := make([]byte, len(tx))
	if err := c.conn.Tx(tx, rx); err != nil {
		return fmt.Errorf("spi transfer failed: %w", err)
	}
	copy(r, rx[len(w):])
	return nil
}

func (c *Conn) Close() error {
	if c.port == nil {
		return nil
	}
	return c.port.Close()
}
