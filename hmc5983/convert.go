package hmc5983

import (
	"encoding/binary"
	"math"
)

// RawSample holds signed axis counts in X, Y, Z order.
type RawSample struct {
	X, Y, Z int16
}

// Reading is a single converted axis value. Value is NaN when Overflow is set.
type Reading struct {
	Raw      int16
	Value    float64
	Overflow bool
}

// MagneticVector is a converted field measurement in X, Y, Z order. Order
// records the register order the device delivered the axes in.
type MagneticVector struct {
	X, Y, Z Reading
	Unit    Unit
	Order   AxisOrder
}

// Err returns an *OverflowError when any axis saturated.
func (v MagneticVector) Err() error {
	var axes []Axis
	for _, a := range []Axis{AxisX, AxisY, AxisZ} {
		if v.Axis(a).Overflow {
			axes = append(axes, a)
		}
	}
	if len(axes) == 0 {
		return nil
	}
	return &OverflowError{Axes: axes}
}

func (v MagneticVector) Axis(a Axis) Reading {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// ScaleFactor returns milligauss per LSB for gain on family f, or 0 for an
// unknown gain code.
func ScaleFactor(f Family, g Gain) float64 {
	if g > Gain8_1 {
		return 0
	}
	return f.Scales[g]
}

// ConvertAxis scales a single axis count.
func ConvertAxis(raw int16, f Family, g Gain, u Unit) Reading {
	if raw == OverflowSentinel {
		return Reading{Raw: raw, Value: math.NaN(), Overflow: true}
	}
	v := float64(raw) * ScaleFactor(f, g)
	if u == Microtesla {
		// 1 mG = 0.1 µT
		v /= 10
	}
	return Reading{Raw: raw, Value: v}
}

// Convert scales a raw sample. A non-nil error is an *OverflowError and the
// returned vector still carries the valid axes.
func Convert(s RawSample, f Family, g Gain, u Unit) (MagneticVector, error) {
	v := MagneticVector{
		X:     ConvertAxis(s.X, f, g, u),
		Y:     ConvertAxis(s.Y, f, g, u),
		Z:     ConvertAxis(s.Z, f, g, u),
		Unit:  u,
		Order: f.Order,
	}
	return v, v.Err()
}

// decodeSample reassembles the big-endian axis pairs of the data output
// registers and remaps them from register order to X, Y, Z.
func decodeSample(data []byte, order AxisOrder) RawSample {
	var s RawSample
	for i, a := range order {
		val := int16(binary.BigEndian.Uint16(data[2*i:]))
		switch a {
		case AxisX:
			s.X = val
		case AxisY:
			s.Y = val
		case AxisZ:
			s.Z = val
		}
	}
	return s
}

// ConvertTemperature maps the HMC5983 temperature code to degrees Celsius:
// 128 LSB per degree with 25 °C at zero.
func ConvertTemperature(raw int16) float64 {
	return float64(raw)/128 + 25
}
