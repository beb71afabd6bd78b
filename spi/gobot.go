package spi

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/magnetometer"
	"gobot.io/x/gobot/v2/drivers/spi"
)

var (
	_ magnetometer.SPIConn = &GobotConn{}

	ErrUnsupportedConnection = errors.New("spi connection does not support required operations")
)

// gobotOps is the subset of the Gobot SPI connection used for register access.
type gobotOps interface {
	ReadCommandData(command []byte, data []byte) error
	WriteBytes(data []byte) error
}

// GobotConn runs transfers through a Gobot SPI driver. The kernel spidev
// device drives chip select.
//
// Example usage:
//
//	adaptor := nanopi.NewNeoAdaptor()
//	conn := spi.NewGobotConn(adaptor, gobotspi.WithBusNumber(0), gobotspi.WithChipNumber(0))
//	if err := conn.Start(); err != nil { ... }
//	dev := hmc5983.New(transport.NewSPI(conn, nil))
type GobotConn struct {
	*spi.Driver
}

func NewGobotConn(adaptor spi.Connector, opts ...func(spi.Config)) *GobotConn {
	d := spi.NewDriver(adaptor, "HMC5983", opts...)
	// mode 3 (CPOL=1, CPHA=1), up to 8 MHz
	d.SetMode(3)
	if d.GetSpeedOrDefault(0) == 0 {
		d.SetSpeed(8_000_000)
	}
	return &GobotConn{Driver: d}
}

func (g *GobotConn) Start() error { return g.Driver.Start() }

func (g *GobotConn) Halt() error { return g.Driver.Halt() }

func (g *GobotConn) Transfer(ctx context.Context, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil || g.Driver == nil {
		return fmt.Errorf("spi driver not initialized")
	}
	ops, ok := g.Driver.Connection().(gobotOps)
	if !ok {
		return ErrUnsupportedConnection
	}
	return transfer(ops, w, r)
}

func transfer(ops gobotOps, w, r []byte) error {
	if len(r) == 0 {
		if len(w) == 0 {
			return nil
		}
		return ops.WriteBytes(w)
	}
	return ops.ReadCommandData(w, r)
}
