// Package sim provides a register-file model of an HMC58x3 magnetometer that
// can be attached to both the two-wire and the four-wire transports. It is
// meant for tests and for dry runs of the CLI without hardware.
package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

const (
	regCRA    = 0x00
	regCRB    = 0x01
	regMode   = 0x02
	regData   = 0x03
	regStatus = 0x09
	regIDA    = 0x0A
	regTemp   = 0x31

	regCount = 0x40
)

// DefaultAddress is the 7-bit I2C address answered by the model.
const DefaultAddress = 0x1E

var ErrNack = errors.New("sim: address not acknowledged")
var ErrChipNotSelected = errors.New("sim: transfer without chip select")

// Write records a register write seen by the model.
type Write struct {
	Register byte
	Value    byte
}

// FaultFunc is consulted before every register access; a non-nil error fails
// the access. op is "read" or "write".
type FaultFunc func(op string, reg byte) error

// HMC5983 is a register-level model of the device. The data registers are laid
// out in the configured axis order and each axis is stored big-endian.
type HMC5983 struct {
	mx        sync.Mutex
	regs      [regCount]byte
	pointer   byte
	address   byte
	order     string
	writes    []Write
	fault     FaultFunc
	csAttach  bool
	selected  bool
	selects   int
	deselects int
	releases  int
}

type Option func(*HMC5983)

// WithAxisOrder sets the order of the axis pairs in the data registers, e.g.
// "XZY" (HMC5883L, HMC5983) or "XYZ" (HMC5843).
func WithAxisOrder(order string) Option {
	return func(s *HMC5983) {
		s.order = order
	}
}

func WithAddress(address byte) Option {
	return func(s *HMC5983) {
		s.address = address
	}
}

func WithIdentity(id [3]byte) Option {
	return func(s *HMC5983) {
		copy(s.regs[regIDA:], id[:])
	}
}

func WithFault(f FaultFunc) Option {
	return func(s *HMC5983) {
		s.fault = f
	}
}

func New(opts ...Option) *HMC5983 {
	s := &HMC5983{address: DefaultAddress, order: "XZY"}
	// power-on defaults from the datasheet
	s.regs[regCRA] = 0x10
	s.regs[regCRB] = 0x20
	s.regs[regMode] = 0x01
	copy(s.regs[regIDA:], []byte{'H', '4', '3'})
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetField stores raw axis counts in the data registers.
func (s *HMC5983) SetField(x, y, z int16) {
	s.mx.Lock()
	defer s.mx.Unlock()
	values := map[byte]int16{'X': x, 'Y': y, 'Z': z}
	for i := 0; i < len(s.order) && i < 3; i++ {
		binary.BigEndian.PutUint16(s.regs[regData+2*i:], uint16(values[s.order[i]]))
	}
	s.regs[regStatus] |= 0x01
}

// SetDataBytes stores the six data register bytes verbatim.
func (s *HMC5983) SetDataBytes(data [6]byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	copy(s.regs[regData:], data[:])
	s.regs[regStatus] |= 0x01
}

// SetTemperature stores a raw temperature code.
func (s *HMC5983) SetTemperature(raw int16) {
	s.mx.Lock()
	defer s.mx.Unlock()
	binary.BigEndian.PutUint16(s.regs[regTemp:], uint16(raw))
}

func (s *HMC5983) SetStatus(status byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.regs[regStatus] = status
}

func (s *HMC5983) SetFault(f FaultFunc) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.fault = f
}

// Register returns the current value of reg.
func (s *HMC5983) Register(reg byte) byte {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.regs[reg%regCount]
}

// Writes returns the register writes seen so far, in order.
func (s *HMC5983) Writes() []Write {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]Write(nil), s.writes...)
}

func (s *HMC5983) write(reg, value byte) error {
	if s.fault != nil {
		if err := s.fault("write", reg); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, Write{Register: reg, Value: value})
	// configuration and mode are the only writable registers
	if reg <= regMode {
		s.regs[reg] = value
	}
	return nil
}

func (s *HMC5983) read(reg byte, buf []byte) error {
	if s.fault != nil {
		if err := s.fault("read", reg); err != nil {
			return err
		}
	}
	for i := range buf {
		buf[i] = s.regs[(int(reg)+i)%regCount]
	}
	if int(reg) <= regData+5 && int(reg)+len(buf) > regData {
		// reading the data registers clears RDY
		s.regs[regStatus] &^= 0x01
	}
	return nil
}

// WriteToAddr implements the two-phase two-wire protocol: the first byte sets
// the register pointer, further bytes are written sequentially.
func (s *HMC5983) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if address != s.address {
		return fmt.Errorf("%w: %#x", ErrNack, address)
	}
	if len(buffer) == 0 {
		return nil
	}
	s.pointer = buffer[0]
	for _, b := range buffer[1:] {
		if err := s.write(s.pointer, b); err != nil {
			return err
		}
		s.pointer++
	}
	return nil
}

func (s *HMC5983) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if address != s.address {
		return fmt.Errorf("%w: %#x", ErrNack, address)
	}
	if err := s.read(s.pointer, buffer); err != nil {
		return err
	}
	s.pointer += byte(len(buffer))
	return nil
}

func (s *HMC5983) Release(ctx context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.releases++
	return nil
}

// Releases returns how many times the bus was released.
func (s *HMC5983) Releases() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.releases
}

// TxToAddr is the combined write-then-read transaction.
func (s *HMC5983) TxToAddr(ctx context.Context, address byte, w, r []byte) error {
	if err := s.WriteToAddr(ctx, address, w); err != nil {
		return err
	}
	return s.ReadFromAddr(ctx, address, r)
}

// TwoPhase hides TxToAddr so transports fall back to separate transactions.
func (s *HMC5983) TwoPhase() *TwoPhaseBus {
	return &TwoPhaseBus{dev: s}
}

type TwoPhaseBus struct {
	dev *HMC5983
}

func (b *TwoPhaseBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.dev.WriteToAddr(ctx, address, buffer)
}

func (b *TwoPhaseBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.dev.ReadFromAddr(ctx, address, buffer)
}

func (b *TwoPhaseBus) Release(ctx context.Context) error {
	return b.dev.Release(ctx)
}
