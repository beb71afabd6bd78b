// Package magnetometer holds the bus abstractions shared by the magnetometer
// drivers: addressable two-wire buses, four-wire connections with chip select
// and the register Transport built on top of them.
package magnetometer

import (
	"context"
	"errors"
)

// ErrBusBusy is returned by bridges whose I2C engine has not finished the
// previous command; Release frees it.
var ErrBusBusy = errors.New("I2C engine is busy (command not completed)")

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// I2CTransactor is implemented by buses able to issue a write followed by a
// read with a repeated start, without releasing the bus in between.
type I2CTransactor interface {
	TxToAddr(ctx context.Context, address byte, w, r []byte) error
}

// SPIConn is a four-wire serial connection. Transfer clocks out w and then
// clocks len(r) bytes into r within one transaction.
type SPIConn interface {
	Transfer(ctx context.Context, w, r []byte) error
}

// ChipSelect drives the chip-select line of a single SPI peripheral.
type ChipSelect interface {
	Select() error
	Deselect() error
}
