package hmc5983

// Unit is the physical unit of converted field readings.
type Unit int

const (
	Milligauss Unit = iota
	Microtesla
)

func (u Unit) String() string {
	switch u {
	case Milligauss:
		return "mG"
	case Microtesla:
		return "µT"
	default:
		return "?"
	}
}

// Config is the device configuration written by Init and Configure.
type Config struct {
	Gain              Gain
	Rate              DataRate
	Averaging         Averaging
	Measurement       MeasurementMode
	Mode              OperatingMode
	TemperatureSensor bool
	HighSpeedI2C      bool
	Unit              Unit
}

// DefaultConfig returns 8-sample averaging at 15 Hz in continuous mode with
// the ±1.3 Ga range. The temperature sensor is enabled where available.
func DefaultConfig(f Family) Config {
	cfg := Config{
		Gain:              Gain1_3,
		Rate:              Rate15Hz, // 10 Hz on the HMC5843
		Averaging:         Avg8,
		Measurement:       MeasureNormal,
		Mode:              ModeContinuous,
		TemperatureSensor: f.HasTemperature,
		Unit:              Milligauss,
	}
	if !f.HasAveraging {
		cfg.Averaging = Avg1
	}
	return cfg
}

func (c Config) configA() byte {
	v := byte(c.Averaging)<<craAvgShift | byte(c.Rate)<<craRateShift | byte(c.Measurement)&craMeasureMask
	if c.TemperatureSensor {
		v |= craTempEnable
	}
	return v
}

func (c Config) configB() byte {
	return byte(c.Gain) << crbGainShift
}

func (c Config) mode(m OperatingMode) byte {
	v := byte(m) & modeMask
	if c.HighSpeedI2C {
		v |= modeHighSpeed
	}
	return v
}

type Option func(*Device)

// WithFamily selects the device variant and resets the requested
// configuration to DefaultConfig(f), so it has to precede the other options.
func WithFamily(f Family) Option {
	return func(d *Device) {
		d.family = f
		d.pending = DefaultConfig(f)
	}
}

// WithConfig replaces the whole requested configuration.
func WithConfig(cfg Config) Option {
	return func(d *Device) {
		d.pending = cfg
	}
}

func WithGain(g Gain) Option {
	return func(d *Device) {
		d.pending.Gain = g
	}
}

func WithRate(r DataRate) Option {
	return func(d *Device) {
		d.pending.Rate = r
	}
}

func WithAveraging(a Averaging) Option {
	return func(d *Device) {
		d.pending.Averaging = a
	}
}

func WithMeasurementMode(m MeasurementMode) Option {
	return func(d *Device) {
		d.pending.Measurement = m
	}
}

func WithOperatingMode(m OperatingMode) Option {
	return func(d *Device) {
		d.pending.Mode = m
	}
}

func WithTemperatureSensor(enabled bool) Option {
	return func(d *Device) {
		d.pending.TemperatureSensor = enabled
	}
}

func WithUnit(u Unit) Option {
	return func(d *Device) {
		d.pending.Unit = u
	}
}
