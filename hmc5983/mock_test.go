package hmc5983

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of magnetometer.Transport.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) WriteRegister(ctx context.Context, reg byte, value byte) error {
	args := m.Called(ctx, reg, value)
	return args.Error(0)
}

func (m *MockTransport) ReadRegisters(ctx context.Context, reg byte, buf []byte) error {
	args := m.Called(ctx, reg, buf)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buf) {
		copy(buf, data)
	}
	return args.Error(1)
}

type MockDelayer struct {
	mock.Mock
}

func (m *MockDelayer) Delay(ctx context.Context, d time.Duration) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// expectInit registers the bus traffic of a successful Init writing cfg.
func expectInit(tr *MockTransport, cfg Config) {
	tr.On("WriteRegister", mock.Anything, RegConfigA, cfg.configA()).Return(nil).Once()
	tr.On("WriteRegister", mock.Anything, RegConfigB, cfg.configB()).Return(nil).Once()
	tr.On("ReadRegisters", mock.Anything, RegConfigB, mock.Anything).Return([]byte{cfg.configB()}, nil).Once()
	tr.On("WriteRegister", mock.Anything, RegMode, cfg.mode(cfg.Mode)).Return(nil).Once()
	tr.On("ReadRegisters", mock.Anything, RegIDA, mock.Anything).Return(Identity[:], nil).Once()
}

func noDelay() *MockDelayer {
	d := new(MockDelayer)
	d.On("Delay", mock.Anything, mock.Anything).Return(nil)
	return d
}
