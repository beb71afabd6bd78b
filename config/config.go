// Package config reads the YAML description of how a magnetometer is
// attached and configured.
//
// Example:
//
//	transport:
//	  kind: i2c
//	  i2c_bus: /dev/i2c-1
//	  address: 0x1e
//	sensor:
//	  family: HMC5983
//	  gain: 1.3
//	  rate: 15
//	  averaging: 8
//	  mode: continuous
//	stream:
//	  mqtt_broker: tcp://localhost:1883
//	  interval: 200ms
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/magnetometer/hmc5983"
)

var ErrInvalid = errors.New("invalid configuration file")

// Transport kinds
const (
	TransportI2C     = "i2c"
	TransportSPI     = "spi"
	TransportMCP2221 = "mcp2221"
	TransportSim     = "sim"
)

// SPI backends
const (
	BackendPeriph = "periph"
	BackendGobot  = "gobot"
)

type File struct {
	Transport Transport `yaml:"transport"`
	Sensor    Sensor    `yaml:"sensor"`
	Stream    Stream    `yaml:"stream"`
}

type Transport struct {
	Kind       string `yaml:"kind"`
	I2CBus     string `yaml:"i2c_bus,omitempty"`
	Address    uint8  `yaml:"address"`
	SPIPort    string `yaml:"spi_port,omitempty"`
	CSPin      string `yaml:"cs_pin,omitempty"`
	SPIBackend string `yaml:"spi_backend,omitempty"`
}

// Sensor uses physical values: gain is the field range in gauss, rate the
// output rate in Hz and averaging the number of samples. Zero values keep the
// family default.
type Sensor struct {
	Family            string  `yaml:"family"`
	Gain              float64 `yaml:"gain"`
	Rate              float64 `yaml:"rate"`
	Averaging         int     `yaml:"averaging"`
	Measurement       string  `yaml:"measurement"`
	Mode              string  `yaml:"mode"`
	TemperatureSensor *bool   `yaml:"temperature_sensor,omitempty"`
	HighSpeedI2C      bool    `yaml:"high_speed_i2c,omitempty"`
	Unit              string  `yaml:"unit"`
}

// Stream tells `magneto stream` where to send readings. An empty broker or
// listen address disables that output.
type Stream struct {
	MQTTBroker string        `yaml:"mqtt_broker,omitempty"`
	Topic      string        `yaml:"topic"`
	ClientID   string        `yaml:"client_id"`
	Listen     string        `yaml:"listen,omitempty"`
	Interval   time.Duration `yaml:"interval"`
}

// Default describes an HMC5983 on the first I2C bus with the driver defaults.
func Default() File {
	return File{
		Transport: Transport{
			Kind:       TransportI2C,
			Address:    0x1E,
			SPIBackend: BackendPeriph,
		},
		Sensor: Sensor{Family: hmc5983.HMC5983.Name},
		Stream: Stream{
			Topic:    "magnetometer/field",
			ClientID: "magneto",
			Interval: 100 * time.Millisecond,
		},
	}
}

// Load reads path on top of Default.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func (f File) Validate() error {
	switch f.Transport.Kind {
	case TransportI2C, TransportSPI, TransportMCP2221, TransportSim:
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, f.Transport.Kind)
	}
	switch f.Transport.SPIBackend {
	case "", BackendPeriph, BackendGobot:
	default:
		return fmt.Errorf("%w: unknown spi backend %q", ErrInvalid, f.Transport.SPIBackend)
	}
	if f.Stream.Interval <= 0 {
		return fmt.Errorf("%w: stream interval must be positive", ErrInvalid)
	}
	if f.Transport.Address > 0x7F {
		return fmt.Errorf("%w: address %#x is not a 7-bit address", ErrInvalid, f.Transport.Address)
	}
	_, _, err := f.Sensor.Device()
	return err
}

// Marshal renders f as YAML.
func (f File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Device resolves the family and the driver configuration.
func (s Sensor) Device() (hmc5983.Family, hmc5983.Config, error) {
	family, err := hmc5983.FamilyByName(strings.ToUpper(s.Family))
	if err != nil {
		return family, hmc5983.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg := hmc5983.DefaultConfig(family)
	if s.Gain != 0 {
		if cfg.Gain, err = GainFor(family, s.Gain); err != nil {
			return family, cfg, err
		}
	}
	if s.Rate != 0 {
		if cfg.Rate, err = RateFor(family, s.Rate); err != nil {
			return family, cfg, err
		}
	}
	if s.Averaging != 0 {
		if cfg.Averaging, err = AveragingFor(s.Averaging); err != nil {
			return family, cfg, err
		}
	}
	if s.Measurement != "" {
		if cfg.Measurement, err = MeasurementFor(s.Measurement); err != nil {
			return family, cfg, err
		}
	}
	if s.Mode != "" {
		if cfg.Mode, err = ModeFor(s.Mode); err != nil {
			return family, cfg, err
		}
	}
	if s.Unit != "" {
		if cfg.Unit, err = UnitFor(s.Unit); err != nil {
			return family, cfg, err
		}
	}
	if s.TemperatureSensor != nil {
		cfg.TemperatureSensor = *s.TemperatureSensor
	}
	cfg.HighSpeedI2C = s.HighSpeedI2C
	if err := family.Validate(cfg); err != nil {
		return family, cfg, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return family, cfg, nil
}

// FromDevice is the inverse of Sensor.Device.
func FromDevice(f hmc5983.Family, cfg hmc5983.Config) Sensor {
	temp := cfg.TemperatureSensor
	s := Sensor{
		Family:       f.Name,
		Averaging:    cfg.Averaging.Samples(),
		Measurement:  cfg.Measurement.String(),
		Mode:         cfg.Mode.String(),
		HighSpeedI2C: cfg.HighSpeedI2C,
		Unit:         unitName(cfg.Unit),
	}
	if cfg.Gain <= hmc5983.Gain8_1 {
		s.Gain = f.Ranges[cfg.Gain]
	}
	if cfg.Rate <= hmc5983.Rate220Hz {
		s.Rate = f.Rates[cfg.Rate]
	}
	if f.HasTemperature {
		s.TemperatureSensor = &temp
	}
	return s
}

// GainFor maps a field range in gauss to the gain code of family f.
func GainFor(f hmc5983.Family, gauss float64) (hmc5983.Gain, error) {
	for i, r := range f.Ranges {
		if closeTo(r, gauss) {
			return hmc5983.Gain(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no ±%g Ga range (available %v)", ErrInvalid, f.Name, gauss, f.Ranges)
}

// RateFor maps an output rate in Hz to the rate code of family f.
func RateFor(f hmc5983.Family, hz float64) (hmc5983.DataRate, error) {
	for i, r := range f.Rates {
		if r != 0 && closeTo(r, hz) {
			return hmc5983.DataRate(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no %g Hz output rate", ErrInvalid, f.Name, hz)
}

func AveragingFor(samples int) (hmc5983.Averaging, error) {
	for a := hmc5983.Avg1; a <= hmc5983.Avg8; a++ {
		if a.Samples() == samples {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: averaging of %d samples", ErrInvalid, samples)
}

func MeasurementFor(name string) (hmc5983.MeasurementMode, error) {
	for m := hmc5983.MeasureNormal; m <= hmc5983.MeasureTemperatureOnly; m++ {
		if strings.EqualFold(m.String(), name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: measurement mode %q", ErrInvalid, name)
}

func ModeFor(name string) (hmc5983.OperatingMode, error) {
	for _, m := range []hmc5983.OperatingMode{hmc5983.ModeContinuous, hmc5983.ModeSingle, hmc5983.ModeIdle} {
		if strings.EqualFold(m.String(), name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: operating mode %q", ErrInvalid, name)
}

func UnitFor(name string) (hmc5983.Unit, error) {
	switch strings.ToLower(name) {
	case "mg", "milligauss":
		return hmc5983.Milligauss, nil
	case "ut", "µt", "microtesla":
		return hmc5983.Microtesla, nil
	}
	return 0, fmt.Errorf("%w: unit %q", ErrInvalid, name)
}

func unitName(u hmc5983.Unit) string {
	if u == hmc5983.Microtesla {
		return "uT"
	}
	return "mG"
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
