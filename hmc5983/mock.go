package hmc5983

import (
	"context"
)

// VectorBehaviorFunc produces a measurement for MockMagnetometer.
type VectorBehaviorFunc func(ctx context.Context) (MagneticVector, error)

// TemperatureBehaviorFunc produces a temperature in Celsius for MockMagnetometer.
type TemperatureBehaviorFunc func(ctx context.Context) (float64, error)

// MockMagnetometer exposes the measurement API of Device backed by behavior
// functions, for consumers that need readings without hardware.
//
// Example usage:
//
//	m := NewMockMagnetometer(
//		func(ctx context.Context) (MagneticVector, error) { return MagneticVector{X: Reading{Value: 200}}, nil },
//		nil,
//	)
type MockMagnetometer struct {
	vector VectorBehaviorFunc
	temp   TemperatureBehaviorFunc
}

// NewMockMagnetometer creates a mock. A nil temperature behavior makes
// ReadTemperature report ErrUnsupported like a device without the sensor.
func NewMockMagnetometer(vector VectorBehaviorFunc, temp TemperatureBehaviorFunc) *MockMagnetometer {
	return &MockMagnetometer{vector: vector, temp: temp}
}

func (m *MockMagnetometer) ReadMagVector(ctx context.Context) (MagneticVector, error) {
	return m.vector(ctx)
}

func (m *MockMagnetometer) ReadTemperature(ctx context.Context) (float64, error) {
	if m.temp == nil {
		return 0, ErrUnsupported
	}
	return m.temp(ctx)
}
