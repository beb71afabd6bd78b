package transport

import (
	"context"
	"fmt"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/snsctx"
)

const (
	// DefaultReadBit marks a read in the register byte.
	DefaultReadBit = 0x80
	// DefaultAutoIncrementBit asks the device to advance the register pointer
	// during multi-byte reads.
	DefaultAutoIncrementBit = 0x40
)

var _ magnetometer.Transport = &SPI{}

// SPI frames register access for a four-wire bus. Chip select is held for the
// duration of each transaction and released on every return path.
type SPI struct {
	conn    magnetometer.SPIConn
	cs      magnetometer.ChipSelect
	readBit byte
	incBit  byte
}

type SPIOption func(*SPI)

func WithReadBit(bit byte) SPIOption {
	return func(t *SPI) {
		t.readBit = bit
	}
}

func WithAutoIncrementBit(bit byte) SPIOption {
	return func(t *SPI) {
		t.incBit = bit
	}
}

// NewSPI wraps conn. cs may be nil when the controller drives chip select on
// its own (spidev does).
func NewSPI(conn magnetometer.SPIConn, cs magnetometer.ChipSelect, opts ...SPIOption) *SPI {
	t := &SPI{
		conn:    conn,
		cs:      cs,
		readBit: DefaultReadBit,
		incBit:  DefaultAutoIncrementBit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SPI) WriteRegister(ctx context.Context, reg byte, value byte) error {
	frame := []byte{reg &^ (t.readBit | t.incBit), value}
	snsctx.DumpFrame(ctx, "spi write", frame)
	if err := t.transfer(ctx, frame, nil); err != nil {
		return &magnetometer.TransportError{Op: "write", Register: reg, Err: err}
	}
	return nil
}

func (t *SPI) ReadRegisters(ctx context.Context, reg byte, buf []byte) error {
	cmd := reg | t.readBit
	if len(buf) > 1 {
		cmd |= t.incBit
	}
	if err := t.transfer(ctx, []byte{cmd}, buf); err != nil {
		return &magnetometer.TransportError{Op: "read", Register: reg, Err: err}
	}
	snsctx.DumpFrame(ctx, "spi read", buf, "reg", reg)
	return nil
}

func (t *SPI) transfer(ctx context.Context, w, r []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.cs != nil {
		if err := t.cs.Select(); err != nil {
			// the line state is unknown, try to leave it released
			_ = t.cs.Deselect()
			return fmt.Errorf("could not assert chip select: %w", err)
		}
		defer func() {
			if derr := t.cs.Deselect(); derr != nil && err == nil {
				err = fmt.Errorf("could not release chip select: %w", derr)
			}
		}()
	}
	return t.conn.Transfer(ctx, w, r)
}
