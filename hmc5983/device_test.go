package hmc5983

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/sim"
	"github.com/mklimuk/magnetometer/transport"
)

func TestConfig_RegisterEncoding(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		cra  byte
		crb  byte
		mode byte
	}{
		{"hmc5983 default", DefaultConfig(HMC5983), 0xF0, 0x20, 0x00},
		{"hmc5883l default", DefaultConfig(HMC5883L), 0x70, 0x20, 0x00},
		{"hmc5843 default", DefaultConfig(HMC5843), 0x10, 0x20, 0x00},
		{
			name: "single shot high speed",
			cfg:  Config{Gain: Gain8_1, Rate: Rate220Hz, Averaging: Avg2, Measurement: MeasurePositiveBias, Mode: ModeSingle, HighSpeedI2C: true},
			cra:  0x3D,
			crb:  0xE0,
			mode: 0x81,
		},
		{
			name: "idle negative bias",
			cfg:  Config{Gain: Gain1_9, Rate: Rate0_75Hz, Averaging: Avg1, Measurement: MeasureNegativeBias, Mode: ModeIdle},
			cra:  0x02,
			crb:  0x40,
			mode: 0x02,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.cra, test.cfg.configA())
			assert.Equal(t, test.crb, test.cfg.configB())
			assert.Equal(t, test.mode, test.cfg.mode(test.cfg.Mode))
		})
	}
}

func TestFamily_Validate(t *testing.T) {
	tests := []struct {
		name   string
		family Family
		modify func(c *Config)
		valid  bool
	}{
		{"default", HMC5983, func(c *Config) {}, true},
		{"220Hz on hmc5883l", HMC5883L, func(c *Config) { c.Rate = Rate220Hz }, false},
		{"220Hz on hmc5983", HMC5983, func(c *Config) { c.Rate = Rate220Hz }, true},
		{"averaging on hmc5843", HMC5843, func(c *Config) { c.Averaging = Avg4 }, false},
		{"temperature on hmc5883l", HMC5883L, func(c *Config) { c.TemperatureSensor = true }, false},
		{"temperature only on hmc5883l", HMC5883L, func(c *Config) { c.Measurement = MeasureTemperatureOnly }, false},
		{"high speed on hmc5843", HMC5843, func(c *Config) { c.HighSpeedI2C = true }, false},
		{"gain out of range", HMC5983, func(c *Config) { c.Gain = 8 }, false},
		{"rate out of range", HMC5983, func(c *Config) { c.Rate = 9 }, false},
		{"mode out of range", HMC5983, func(c *Config) { c.Mode = 3 }, false},
		{"unit out of range", HMC5983, func(c *Config) { c.Unit = 5 }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig(test.family)
			test.modify(&cfg)
			err := test.family.Validate(cfg)
			if test.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestDevice_InitReady(t *testing.T) {
	tr := new(MockTransport)
	cfg := DefaultConfig(HMC5983)
	expectInit(tr, cfg)
	delay := new(MockDelayer)
	delay.On("Delay", mock.Anything, SettleDelay).Return(nil).Once()

	dev := New(tr)
	assert.Equal(t, StateUninitialized, dev.State())
	require.NoError(t, dev.Init(context.Background(), delay))
	assert.Equal(t, StateReady, dev.State())
	assert.Equal(t, cfg, dev.Config())
	tr.AssertExpectations(t)
	delay.AssertExpectations(t)
}

func TestDevice_InitWriteOrder(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev), WithFamily(HMC5883L), WithGain(Gain1_9))
	require.NoError(t, d.Init(context.Background(), noDelay()))
	assert.Equal(t, []sim.Write{
		{Register: RegConfigA, Value: 0x70},
		{Register: RegConfigB, Value: 0x40},
		{Register: RegMode, Value: 0x00},
	}, dev.Writes())
}

func TestDevice_InitIdentityMismatch(t *testing.T) {
	tr := new(MockTransport)
	cfg := DefaultConfig(HMC5983)
	tr.On("WriteRegister", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tr.On("ReadRegisters", mock.Anything, RegConfigB, mock.Anything).Return([]byte{cfg.configB()}, nil)
	tr.On("ReadRegisters", mock.Anything, RegIDA, mock.Anything).Return([]byte{'Q', 'M', 'C'}, nil)
	delay := new(MockDelayer)

	dev := New(tr)
	err := dev.Init(context.Background(), delay)
	require.ErrorIs(t, err, ErrIdentityMismatch)
	var ierr *IdentityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, [3]byte{'Q', 'M', 'C'}, ierr.Got)
	assert.Equal(t, StateFaulted, dev.State())
	delay.AssertNotCalled(t, "Delay", mock.Anything, mock.Anything)

	_, err = dev.ReadMagVector(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDevice_InitTransportFailures(t *testing.T) {
	busErr := errors.New("nack")
	tests := []struct {
		name string
		op   string
		reg  byte
	}{
		{"config A", "write", RegConfigA},
		{"config B", "write", RegConfigB},
		{"gain read back", "read", RegConfigB},
		{"mode", "write", RegMode},
		{"identity", "read", RegIDA},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := sim.New(sim.WithFault(func(op string, reg byte) error {
				if op == test.op && reg == test.reg {
					return busErr
				}
				return nil
			}))
			d := New(transport.NewI2C(dev))
			err := d.Init(context.Background(), noDelay())
			assert.ErrorIs(t, err, magnetometer.ErrTransport)
			assert.ErrorIs(t, err, busErr)
			assert.Equal(t, StateFaulted, d.State())
		})
	}
}

func TestDevice_InitGainMismatch(t *testing.T) {
	tr := new(MockTransport)
	tr.On("WriteRegister", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tr.On("ReadRegisters", mock.Anything, RegConfigB, mock.Anything).Return([]byte{0x00}, nil)

	dev := New(tr)
	err := dev.Init(context.Background(), noDelay())
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, StateFaulted, dev.State())
	tr.AssertNotCalled(t, "WriteRegister", mock.Anything, RegMode, mock.Anything)
}

func TestDevice_InitInvalidConfig(t *testing.T) {
	tr := new(MockTransport)
	dev := New(tr, WithFamily(HMC5883L), WithRate(Rate220Hz))
	err := dev.Init(context.Background(), noDelay())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, StateFaulted, dev.State())
	assert.Empty(t, tr.Calls)
}

func TestDevice_InitSettleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	err := d.Init(ctx, magnetometer.SleepDelayer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFaulted, d.State())
}

func TestDevice_ReinitAfterFault(t *testing.T) {
	busErr := errors.New("nack")
	dev := sim.New(sim.WithFault(func(op string, reg byte) error { return busErr }))
	d := New(transport.NewI2C(dev))
	require.Error(t, d.Init(context.Background(), noDelay()))
	assert.Equal(t, StateFaulted, d.State())

	dev.SetFault(nil)
	require.NoError(t, d.Init(context.Background(), noDelay()))
	assert.Equal(t, StateReady, d.State())
}

func TestDevice_NotReady(t *testing.T) {
	tr := new(MockTransport)
	dev := New(tr)
	ctx := context.Background()

	_, err := dev.ReadMagVector(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = dev.ReadRaw(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = dev.ReadTemperature(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, dev.SetGain(ctx, Gain4_0), ErrNotReady)
	assert.ErrorIs(t, dev.Configure(ctx, DefaultConfig(HMC5983)), ErrNotReady)

	assert.Empty(t, tr.Calls)
}

func TestDevice_ReadMagVector(t *testing.T) {
	samples := []RawSample{
		{X: 0, Y: 0, Z: 0},
		{X: 100, Y: -100, Z: 50},
		{X: 2047, Y: -2048, Z: 1},
		{X: -1, Y: 1, Z: -4095},
	}
	for g := Gain0_88; g <= Gain8_1; g++ {
		for _, s := range samples {
			dev := sim.New()
			d := New(transport.NewI2C(dev), WithGain(g))
			require.NoError(t, d.Init(context.Background(), noDelay()))
			dev.SetField(s.X, s.Y, s.Z)

			v, err := d.ReadMagVector(context.Background())
			require.NoError(t, err)
			scale := ScaleFactor(HMC5983, g)
			assert.InDelta(t, float64(s.X)*scale, v.X.Value, 1e-9)
			assert.InDelta(t, float64(s.Y)*scale, v.Y.Value, 1e-9)
			assert.InDelta(t, float64(s.Z)*scale, v.Z.Value, 1e-9)
		}
	}
}

func TestDevice_ReadMagVectorScenario(t *testing.T) {
	dev := sim.New()
	dev.SetDataBytes([6]byte{0x00, 0x64, 0x00, 0x32, 0xFF, 0x9C})
	d := New(transport.NewI2C(dev), WithFamily(HMC5883L))
	require.NoError(t, d.Init(context.Background(), noDelay()))

	v, err := d.ReadMagVector(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 92.0, v.X.Value, 1e-9)
	assert.InDelta(t, -92.0, v.Y.Value, 1e-9)
	assert.InDelta(t, 46.0, v.Z.Value, 1e-9)
}

func TestDevice_ReadMagVectorOverflow(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	require.NoError(t, d.Init(context.Background(), noDelay()))
	dev.SetField(100, OverflowSentinel, 50)

	v, err := d.ReadMagVector(context.Background())
	require.ErrorIs(t, err, ErrOverflow)
	assert.True(t, v.Y.Overflow)
	assert.InDelta(t, 92.0, v.X.Value, 1e-9)
	assert.InDelta(t, 46.0, v.Z.Value, 1e-9)
	assert.Equal(t, StateReady, d.State())
}

func TestDevice_ReadMagVectorTransportFailure(t *testing.T) {
	busErr := errors.New("timeout")
	tr := new(MockTransport)
	expectInit(tr, DefaultConfig(HMC5983))
	tr.On("ReadRegisters", mock.Anything, RegDataOut, mock.Anything).Return(nil, &magnetometer.TransportError{Op: "read", Register: RegDataOut, Err: busErr}).Once()

	d := New(tr)
	require.NoError(t, d.Init(context.Background(), noDelay()))
	_, err := d.ReadMagVector(context.Background())
	assert.ErrorIs(t, err, magnetometer.ErrTransport)
	assert.ErrorIs(t, err, busErr)
	// a failed read does not invalidate the configuration
	assert.Equal(t, StateReady, d.State())
}

func TestDevice_TransportSwap(t *testing.T) {
	families := []Family{HMC5843, HMC5883L, HMC5983}
	for _, f := range families {
		t.Run(f.Name, func(t *testing.T) {
			newDev := func() *sim.HMC5983 {
				dev := sim.New(sim.WithAxisOrder(f.Order.String()))
				dev.SetField(-321, 1234, OverflowSentinel)
				return dev
			}
			combined := newDev()
			twoPhase := newDev()
			four := newDev()
			transports := map[string]magnetometer.Transport{
				"i2c combined":  transport.NewI2C(combined),
				"i2c two phase": transport.NewI2C(twoPhase.TwoPhase()),
				"spi":           transport.NewSPI(four, four.CS()),
			}
			var results []MagneticVector
			for name, tr := range transports {
				d := New(tr, WithFamily(f), WithGain(Gain2_5))
				require.NoError(t, d.Init(context.Background(), noDelay()), name)
				v, err := d.ReadMagVector(context.Background())
				require.ErrorIs(t, err, ErrOverflow, name)
				results = append(results, v)
			}
			for _, v := range results[1:] {
				assert.Equal(t, results[0].X, v.X)
				assert.Equal(t, results[0].Y, v.Y)
				assert.Equal(t, results[0].Z.Raw, v.Z.Raw)
				assert.Equal(t, results[0].Z.Overflow, v.Z.Overflow)
			}
			assert.Equal(t, int16(-321), results[0].X.Raw)
			assert.Equal(t, int16(1234), results[0].Y.Raw)
			assert.True(t, results[0].Z.Overflow)
		})
	}
}

func TestDevice_SetGain(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx, noDelay()))
	dev.SetField(100, 0, 0)

	v, err := d.ReadMagVector(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 92.0, v.X.Value, 1e-9)

	require.NoError(t, d.SetGain(ctx, Gain4_0))
	assert.Equal(t, byte(0x80), dev.Register(RegConfigB))
	assert.Equal(t, Gain4_0, d.Config().Gain)

	v, err = d.ReadMagVector(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 227.0, v.X.Value, 1e-9)
}

func TestDevice_SetGainFailureFaults(t *testing.T) {
	busErr := errors.New("nack")
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx, noDelay()))

	dev.SetFault(func(op string, reg byte) error {
		if op == "write" && reg == RegConfigB {
			return busErr
		}
		return nil
	})
	err := d.SetGain(ctx, Gain8_1)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, StateFaulted, d.State())
	_, err = d.ReadMagVector(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDevice_SetGainInvalid(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	require.NoError(t, d.Init(context.Background(), noDelay()))
	writes := len(dev.Writes())

	assert.ErrorIs(t, d.SetGain(context.Background(), Gain(9)), ErrInvalidConfig)
	assert.Equal(t, StateReady, d.State())
	assert.Len(t, dev.Writes(), writes)
}

func TestDevice_Configure(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx, noDelay()))

	cfg := d.Config()
	cfg.Rate = Rate75Hz
	cfg.Averaging = Avg1
	cfg.Gain = Gain5_6
	cfg.Unit = Microtesla
	require.NoError(t, d.Configure(ctx, cfg))
	assert.Equal(t, StateReady, d.State())
	assert.Equal(t, cfg, d.Config())
	assert.Equal(t, byte(0x98), dev.Register(RegConfigA))
	assert.Equal(t, byte(0xC0), dev.Register(RegConfigB))

	dev.SetField(10, 0, 0)
	v, err := d.ReadMagVector(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.03, v.X.Value, 1e-9)
	assert.Equal(t, Microtesla, v.Unit)
}

func TestDevice_ConfigureInvalidKeepsReady(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev), WithFamily(HMC5883L))
	require.NoError(t, d.Init(context.Background(), noDelay()))
	writes := len(dev.Writes())

	cfg := d.Config()
	cfg.TemperatureSensor = true
	assert.ErrorIs(t, d.Configure(context.Background(), cfg), ErrInvalidConfig)
	assert.Equal(t, StateReady, d.State())
	assert.Len(t, dev.Writes(), writes)
}

func TestDevice_SingleShot(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev), WithOperatingMode(ModeSingle))
	delay := new(MockDelayer)
	delay.On("Delay", mock.Anything, SettleDelay).Return(nil).Once()
	delay.On("Delay", mock.Anything, MeasurementDelay).Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, d.Init(ctx, delay))
	dev.SetField(1, 2, 3)
	before := len(dev.Writes())

	raw, err := d.ReadRaw(ctx)
	require.NoError(t, err)
	assert.Equal(t, RawSample{X: 1, Y: 2, Z: 3}, raw)
	assert.Equal(t, []sim.Write{{Register: RegMode, Value: 0x01}}, dev.Writes()[before:])
	delay.AssertExpectations(t)
}

func TestDevice_ReadTemperature(t *testing.T) {
	dev := sim.New()
	d := New(transport.NewI2C(dev))
	ctx := context.Background()
	require.NoError(t, d.Init(ctx, noDelay()))
	dev.SetTemperature(3200)

	temp, err := d.ReadTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, temp)
}

func TestDevice_ReadTemperatureUnsupported(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"hmc5883l", []Option{WithFamily(HMC5883L)}},
		{"hmc5843", []Option{WithFamily(HMC5843)}},
		{"disabled", []Option{WithTemperatureSensor(false)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := sim.New()
			d := New(transport.NewI2C(dev), test.opts...)
			require.NoError(t, d.Init(context.Background(), noDelay()))
			_, err := d.ReadTemperature(context.Background())
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestDevice_Diagnostics(t *testing.T) {
	dev := sim.New()
	dev.SetStatus(0x13)
	d := New(transport.NewSPI(dev, dev.CS()))
	ctx := context.Background()

	status, err := d.ReadStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Ready: true, Lock: true, DataOverwritten: true}, status)

	id, err := d.ReadID(ctx)
	require.NoError(t, err)
	assert.Equal(t, Identity, id)
	assert.Equal(t, StateUninitialized, d.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "configuring", StateConfiguring.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "faulted", StateFaulted.String())
	assert.Equal(t, "State(7)", State(7).String())
}
