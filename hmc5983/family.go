package hmc5983

import "fmt"

// Axis identifies one of the three sensing axes.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// AxisOrder is the order of the axis pairs in the data output registers.
type AxisOrder [3]Axis

func (o AxisOrder) String() string {
	return o[0].String() + o[1].String() + o[2].String()
}

var (
	OrderXYZ = AxisOrder{AxisX, AxisY, AxisZ}
	OrderXZY = AxisOrder{AxisX, AxisZ, AxisY}
)

// Family holds the constants that differ between members of the device family.
type Family struct {
	Name           string
	Order          AxisOrder
	HasTemperature bool
	HasAveraging   bool
	HasHighSpeed   bool
	// Scales in milligauss per LSB, indexed by Gain.
	Scales [8]float64
	// Ranges in gauss, indexed by Gain.
	Ranges [8]float64
	// Rates in Hz, indexed by DataRate; zero marks a reserved code.
	Rates [8]float64
}

var HMC5843 = Family{
	Name:   "HMC5843",
	Order:  OrderXYZ,
	Scales: [8]float64{1000.0 / 1620, 1000.0 / 1300, 1000.0 / 970, 1000.0 / 780, 1000.0 / 530, 1000.0 / 460, 1000.0 / 390, 1000.0 / 280},
	Ranges: [8]float64{0.7, 1.0, 1.5, 2.0, 3.2, 3.8, 4.5, 6.5},
	Rates:  [8]float64{0.5, 1, 2, 5, 10, 20, 50, 0},
}

var HMC5883L = Family{
	Name:         "HMC5883L",
	Order:        OrderXZY,
	HasAveraging: true,
	Scales:       [8]float64{0.73, 0.92, 1.22, 1.52, 2.27, 2.56, 3.03, 4.35},
	Ranges:       [8]float64{0.88, 1.3, 1.9, 2.5, 4.0, 4.7, 5.6, 8.1},
	Rates:        [8]float64{0.75, 1.5, 3, 7.5, 15, 30, 75, 0},
}

var HMC5983 = Family{
	Name:           "HMC5983",
	Order:          OrderXZY,
	HasTemperature: true,
	HasAveraging:   true,
	HasHighSpeed:   true,
	Scales:         [8]float64{0.73, 0.92, 1.22, 1.52, 2.27, 2.56, 3.03, 4.35},
	Ranges:         [8]float64{0.88, 1.3, 1.9, 2.5, 4.0, 4.7, 5.6, 8.1},
	Rates:          [8]float64{0.75, 1.5, 3, 7.5, 15, 30, 75, 220},
}

// Families lists the supported devices.
var Families = []Family{HMC5843, HMC5883L, HMC5983}

// FamilyByName looks a family up by its part number.
func FamilyByName(name string) (Family, error) {
	for _, f := range Families {
		if f.Name == name {
			return f, nil
		}
	}
	return Family{}, fmt.Errorf("unknown device family %q", name)
}

// Validate reports configurations the family cannot hold as ErrInvalidConfig.
func (f Family) Validate(cfg Config) error {
	if cfg.Gain > Gain8_1 {
		return fmt.Errorf("%w: gain code %d", ErrInvalidConfig, cfg.Gain)
	}
	if cfg.Rate > Rate220Hz || f.Rates[cfg.Rate] == 0 {
		return fmt.Errorf("%w: rate code %d not available on %s", ErrInvalidConfig, cfg.Rate, f.Name)
	}
	if cfg.Averaging > Avg8 || (cfg.Averaging != Avg1 && !f.HasAveraging) {
		return fmt.Errorf("%w: averaging of %d samples not available on %s", ErrInvalidConfig, cfg.Averaging.Samples(), f.Name)
	}
	if cfg.Measurement > MeasureTemperatureOnly || (cfg.Measurement == MeasureTemperatureOnly && !f.HasTemperature) {
		return fmt.Errorf("%w: %s measurement not available on %s", ErrInvalidConfig, cfg.Measurement, f.Name)
	}
	if cfg.Mode > ModeIdle {
		return fmt.Errorf("%w: operating mode %d", ErrInvalidConfig, cfg.Mode)
	}
	if cfg.TemperatureSensor && !f.HasTemperature {
		return fmt.Errorf("%w: %s has no temperature sensor", ErrInvalidConfig, f.Name)
	}
	if cfg.HighSpeedI2C && !f.HasHighSpeed {
		return fmt.Errorf("%w: %s has no high speed I2C", ErrInvalidConfig, f.Name)
	}
	if cfg.Unit != Milligauss && cfg.Unit != Microtesla {
		return fmt.Errorf("%w: unit %d", ErrInvalidConfig, cfg.Unit)
	}
	return nil
}
