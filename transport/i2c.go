package transport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/snsctx"
)

// DefaultI2CAddress is the fixed 7-bit address of the HMC58x3 family.
const DefaultI2CAddress = 0x1E

var _ magnetometer.Transport = &I2C{}

// I2C frames register access for a two-wire bus: the register address is the
// first byte written, followed by the value on writes or by a read of the
// requested length.
type I2C struct {
	bus     magnetometer.I2CBus
	address byte
}

type I2COption func(*I2C)

func WithAddress(address byte) I2COption {
	return func(t *I2C) {
		t.address = address
	}
}

func NewI2C(bus magnetometer.I2CBus, opts ...I2COption) *I2C {
	t := &I2C{bus: bus, address: DefaultI2CAddress}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *I2C) Address() byte {
	return t.address
}

func (t *I2C) WriteRegister(ctx context.Context, reg byte, value byte) error {
	frame := []byte{reg, value}
	snsctx.DumpFrame(ctx, "i2c write", frame, "addr", t.address)
	err := t.transact(ctx, func() error {
		return t.bus.WriteToAddr(ctx, t.address, frame)
	})
	if err != nil {
		return &magnetometer.TransportError{Op: "write", Register: reg, Err: err}
	}
	return nil
}

// ReadRegisters uses a combined transaction when the bus supports it and falls
// back to setting the register pointer and reading in a second transaction.
func (t *I2C) ReadRegisters(ctx context.Context, reg byte, buf []byte) error {
	err := t.transact(ctx, func() error {
		if tx, ok := t.bus.(magnetometer.I2CTransactor); ok {
			return tx.TxToAddr(ctx, t.address, []byte{reg}, buf)
		}
		if err := t.bus.WriteToAddr(ctx, t.address, []byte{reg}); err != nil {
			return err
		}
		return t.bus.ReadFromAddr(ctx, t.address, buf)
	})
	if err != nil {
		return &magnetometer.TransportError{Op: "read", Register: reg, Err: err}
	}
	snsctx.DumpFrame(ctx, "i2c read", buf, "addr", t.address, "reg", reg)
	return nil
}

// transact runs op and releases the bus afterwards, whatever the outcome. A
// transaction rejected by a busy bus is retried once after the release.
func (t *I2C) transact(ctx context.Context, op func() error) error {
	err := op()
	t.release(ctx)
	if errors.Is(err, magnetometer.ErrBusBusy) {
		err = op()
		t.release(ctx)
	}
	return err
}

func (t *I2C) release(ctx context.Context) {
	if err := t.bus.Release(ctx); err != nil {
		slog.DebugContext(ctx, "could not release i2c bus", "error", err)
	}
}
