package hmc5983

import "time"

// Register is a device register address.
type Register = byte

// Register map shared by the HMC5843, HMC5883L and HMC5983.
const (
	RegConfigA Register = 0x00
	RegConfigB Register = 0x01
	RegMode    Register = 0x02
	RegDataOut Register = 0x03 // six bytes, axis order depends on the family
	RegStatus  Register = 0x09
	RegIDA     Register = 0x0A
	RegIDB     Register = 0x0B
	RegIDC     Register = 0x0C
	RegTempOut Register = 0x31 // HMC5983 only, MSB then LSB
)

// Identity is the content of the three identification registers.
var Identity = [3]byte{'H', '4', '3'}

// Configuration register A
// bit 7: temperature sensor enable (HMC5983), bits 6:5 averaging,
// bits 4:2 output rate, bits 1:0 measurement mode
const (
	craTempEnable  = 0x80
	craAvgShift    = 5
	craRateShift   = 2
	craMeasureMask = 0x03
)

// Configuration register B, bits 7:5 select the gain.
const crbGainShift = 5

// Mode register
// bit 7: high speed I2C (3400 kHz, HMC5983), bits 1:0 operating mode
const (
	modeHighSpeed = 0x80
	modeMask      = 0x03
)

// Status register
const (
	statusReady = 0x01
	statusLock  = 0x02
	statusDOOR  = 0x10 // data output overwritten, HMC5983
)

// The data output registers hold this value when the field exceeded the
// selected range on that axis.
const OverflowSentinel int16 = -4096

const (
	// SettleDelay is waited after the mode register was written.
	SettleDelay = 100 * time.Millisecond
	// MeasurementDelay covers one single-shot measurement (160 Hz max rate).
	MeasurementDelay = 6 * time.Millisecond
)

// Gain selects the sensitivity range (CRB bits 7:5). Names follow the
// HMC5883L/HMC5983 field ranges; see Family.Ranges for other devices.
type Gain byte

const (
	Gain0_88 Gain = iota // ±0.88 Ga
	Gain1_3              // ±1.3 Ga, power-on default
	Gain1_9              // ±1.9 Ga
	Gain2_5              // ±2.5 Ga
	Gain4_0              // ±4.0 Ga
	Gain4_7              // ±4.7 Ga
	Gain5_6              // ±5.6 Ga
	Gain8_1              // ±8.1 Ga
)

// DataRate is the continuous-mode output rate code (CRA bits 4:2). Names follow
// the HMC5883L/HMC5983 rates; see Family.Rates for other devices.
type DataRate byte

const (
	Rate0_75Hz DataRate = iota
	Rate1_5Hz
	Rate3Hz
	Rate7_5Hz
	Rate15Hz
	Rate30Hz
	Rate75Hz
	Rate220Hz // HMC5983 only
)

// Averaging is the number of samples averaged per output (CRA bits 6:5).
type Averaging byte

const (
	Avg1 Averaging = iota
	Avg2
	Avg4
	Avg8
)

func (a Averaging) Samples() int {
	return 1 << a
}

// MeasurementMode selects the measurement flow (CRA bits 1:0).
type MeasurementMode byte

const (
	MeasureNormal MeasurementMode = iota
	MeasurePositiveBias
	MeasureNegativeBias
	MeasureTemperatureOnly // HMC5983 only
)

func (m MeasurementMode) String() string {
	switch m {
	case MeasureNormal:
		return "normal"
	case MeasurePositiveBias:
		return "positive-bias"
	case MeasureNegativeBias:
		return "negative-bias"
	case MeasureTemperatureOnly:
		return "temperature-only"
	default:
		return "unknown"
	}
}

// OperatingMode is the content of the mode register bits 1:0.
type OperatingMode byte

const (
	ModeContinuous OperatingMode = 0x00
	ModeSingle     OperatingMode = 0x01
	ModeIdle       OperatingMode = 0x02
)

func (m OperatingMode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeSingle:
		return "single"
	case ModeIdle, 0x03:
		return "idle"
	default:
		return "unknown"
	}
}

// Status is the decoded status register.
type Status struct {
	Ready           bool `yaml:"ready"`
	Lock            bool `yaml:"lock"`
	DataOverwritten bool `yaml:"data_overwritten"`
}

func decodeStatus(b byte) Status {
	return Status{
		Ready:           b&statusReady != 0,
		Lock:            b&statusLock != 0,
		DataOverwritten: b&statusDOOR != 0,
	}
}
