// Package hmc5983 drives the Honeywell HMC5843, HMC5883L and HMC5983 3-axis
// magnetometers over any magnetometer.Transport.
//
// Datasheets:
//   - https://www.farnell.com/datasheets/1509871.pdf (HMC5983)
//   - https://cdn-shop.adafruit.com/datasheets/HMC5883L_3-Axis_Digital_Compass_IC.pdf
//
// Usage:
//
//	dev := hmc5983.New(transport.NewI2C(bus), hmc5983.WithGain(hmc5983.Gain1_9))
//	if err := dev.Init(ctx, magnetometer.SleepDelayer{}); err != nil { ... }
//	v, err := dev.ReadMagVector(ctx)
package hmc5983

import (
	"context"
	"fmt"

	"github.com/mklimuk/magnetometer"
)

// State is the position of a Device in its initialization state machine.
type State int

const (
	StateUninitialized State = iota
	StateConfiguring
	StateReady
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfiguring:
		return "configuring"
	case StateReady:
		return "ready"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Device is a single magnetometer behind one transport. It is not safe for
// concurrent use; the transport and the bus below it are owned exclusively.
type Device struct {
	transport magnetometer.Transport
	family    Family
	delay     magnetometer.Delayer
	// pending is what Init will write, config is what the device holds
	pending Config
	config  Config
	state   State
	buf     [6]byte
}

func New(t magnetometer.Transport, opts ...Option) *Device {
	d := &Device{
		transport: t,
		family:    HMC5983,
		pending:   DefaultConfig(HMC5983),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Device) State() State {
	return d.state
}

func (d *Device) Family() Family {
	return d.family
}

// Config returns the configuration last written to the device. It is only
// meaningful in StateReady.
func (d *Device) Config() Config {
	return d.config
}

// Init writes the configuration registers, verifies the device identity and
// waits for the device to settle using delay. A nil delay sleeps. On any
// failure the device is left in StateFaulted and Init has to be repeated.
func (d *Device) Init(ctx context.Context, delay magnetometer.Delayer) error {
	if delay == nil {
		delay = magnetometer.SleepDelayer{}
	}
	d.delay = delay
	cfg := d.pending
	if err := d.family.Validate(cfg); err != nil {
		return d.fail(err)
	}
	d.state = StateConfiguring
	if err := d.writeConfig(ctx, cfg); err != nil {
		return d.fail(err)
	}
	id, err := d.ReadID(ctx)
	if err != nil {
		return d.fail(err)
	}
	if id != Identity {
		return d.fail(&IdentityError{Got: id})
	}
	if err := d.delay.Delay(ctx, SettleDelay); err != nil {
		return d.fail(fmt.Errorf("hmc5983: settle wait interrupted: %w", err))
	}
	d.config = cfg
	d.state = StateReady
	return nil
}

// Configure rewrites the whole configuration of an initialized device. An
// invalid configuration is rejected without touching the bus; a bus failure
// leaves the device in StateFaulted.
func (d *Device) Configure(ctx context.Context, cfg Config) error {
	if d.state != StateReady {
		return ErrNotReady
	}
	if err := d.family.Validate(cfg); err != nil {
		return err
	}
	d.state = StateConfiguring
	if err := d.writeConfig(ctx, cfg); err != nil {
		return d.fail(err)
	}
	if err := d.delay.Delay(ctx, SettleDelay); err != nil {
		return d.fail(fmt.Errorf("hmc5983: settle wait interrupted: %w", err))
	}
	d.pending = cfg
	d.config = cfg
	d.state = StateReady
	return nil
}

// SetGain changes the sensitivity range of an initialized device.
func (d *Device) SetGain(ctx context.Context, g Gain) error {
	if d.state != StateReady {
		return ErrNotReady
	}
	cfg := d.config
	cfg.Gain = g
	if err := d.family.Validate(cfg); err != nil {
		return err
	}
	if err := d.writeGain(ctx, cfg); err != nil {
		return d.fail(err)
	}
	d.pending.Gain = g
	d.config.Gain = g
	return nil
}

// ReadRaw returns the axis counts in X, Y, Z order. In single-shot mode a
// measurement is triggered first.
func (d *Device) ReadRaw(ctx context.Context) (RawSample, error) {
	if d.state != StateReady {
		return RawSample{}, ErrNotReady
	}
	if d.config.Mode == ModeSingle {
		err := d.transport.WriteRegister(ctx, RegMode, d.config.mode(ModeSingle))
		if err != nil {
			return RawSample{}, fmt.Errorf("hmc5983: could not trigger measurement: %w", err)
		}
		if err := d.delay.Delay(ctx, MeasurementDelay); err != nil {
			return RawSample{}, fmt.Errorf("hmc5983: measurement wait interrupted: %w", err)
		}
	}
	data := d.buf[:6]
	if err := d.transport.ReadRegisters(ctx, RegDataOut, data); err != nil {
		return RawSample{}, fmt.Errorf("hmc5983: could not read data output: %w", err)
	}
	return decodeSample(data, d.family.Order), nil
}

// ReadMagVector reads and converts one measurement using the gain currently
// configured. When an axis saturated the vector is returned together with an
// *OverflowError; the other axes are valid.
func (d *Device) ReadMagVector(ctx context.Context) (MagneticVector, error) {
	raw, err := d.ReadRaw(ctx)
	if err != nil {
		return MagneticVector{}, err
	}
	return Convert(raw, d.family, d.config.Gain, d.config.Unit)
}

// ReadTemperature returns the die temperature in degrees Celsius. Only the
// HMC5983 has a temperature sensor and it has to be enabled in the config.
func (d *Device) ReadTemperature(ctx context.Context) (float64, error) {
	if d.state != StateReady {
		return 0, ErrNotReady
	}
	if !d.family.HasTemperature {
		return 0, fmt.Errorf("%w: %s has no temperature sensor", ErrUnsupported, d.family.Name)
	}
	if !d.config.TemperatureSensor {
		return 0, fmt.Errorf("%w: temperature sensor disabled", ErrUnsupported)
	}
	data := d.buf[:2]
	if err := d.transport.ReadRegisters(ctx, RegTempOut, data); err != nil {
		return 0, fmt.Errorf("hmc5983: could not read temperature: %w", err)
	}
	return ConvertTemperature(int16(uint16(data[0])<<8 | uint16(data[1]))), nil
}

// ReadStatus reads the status register. It does not require initialization.
func (d *Device) ReadStatus(ctx context.Context) (Status, error) {
	data := d.buf[:1]
	if err := d.transport.ReadRegisters(ctx, RegStatus, data); err != nil {
		return Status{}, fmt.Errorf("hmc5983: could not read status: %w", err)
	}
	return decodeStatus(data[0]), nil
}

// ReadID reads the three identification registers. It does not require
// initialization.
func (d *Device) ReadID(ctx context.Context) ([3]byte, error) {
	var id [3]byte
	if err := d.transport.ReadRegisters(ctx, RegIDA, id[:]); err != nil {
		return id, fmt.Errorf("hmc5983: could not read identification: %w", err)
	}
	return id, nil
}

// writeConfig writes CRA, CRB and the mode register in that order.
func (d *Device) writeConfig(ctx context.Context, cfg Config) error {
	err := d.transport.WriteRegister(ctx, RegConfigA, cfg.configA())
	if err != nil {
		return fmt.Errorf("hmc5983: could not write configuration A: %w", err)
	}
	if err := d.writeGain(ctx, cfg); err != nil {
		return err
	}
	err = d.transport.WriteRegister(ctx, RegMode, cfg.mode(cfg.Mode))
	if err != nil {
		return fmt.Errorf("hmc5983: could not write mode: %w", err)
	}
	return nil
}

func (d *Device) writeGain(ctx context.Context, cfg Config) error {
	want := cfg.configB()
	err := d.transport.WriteRegister(ctx, RegConfigB, want)
	if err != nil {
		return fmt.Errorf("hmc5983: could not write gain: %w", err)
	}
	got := d.buf[:1]
	if err := d.transport.ReadRegisters(ctx, RegConfigB, got); err != nil {
		return fmt.Errorf("hmc5983: could not read back gain: %w", err)
	}
	if got[0] != want {
		return fmt.Errorf("%w: gain register holds %#04x, wrote %#04x", ErrConfiguration, got[0], want)
	}
	return nil
}

func (d *Device) fail(err error) error {
	d.state = StateFaulted
	return err
}
