package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/cmd/magneto/console"
	"github.com/mklimuk/magnetometer/hmc5983"
)

func init() {
	color.NoColor = true
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	console.SetOutput(&out, &out)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	code := run(append([]string{"magneto"}, args...))
	return code, out.String()
}

func TestGlobalFlags(t *testing.T) {
	assert.NotPanics(t, func() {
		code := run([]string{"magneto", "--transport", "sim", "id"})
		assert.Equal(t, 0, code)
	})

	code, out := runCLI(t, "--verbose", "--transport", "sim", "id")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "H43")

	code, _ = runCLI(t, "-v")
	assert.Equal(t, 0, code)
	code, _ = runCLI(t, "--version")
	assert.Equal(t, 0, code)
}

func TestRead_Sim(t *testing.T) {
	code, out := runCLI(t, "--transport", "sim", "read", "--count", "2", "--interval", "1ms")
	require.Equal(t, 0, code, out)
	assert.Equal(t, 2, bytes.Count([]byte(out), []byte("X: ")))
	assert.Contains(t, out, "197.80")
	assert.Contains(t, out, "-44.16")
	assert.Contains(t, out, "379.04")
	assert.Contains(t, out, "mG")
}

func TestTemperature_Sim(t *testing.T) {
	code, out := runCLI(t, "--transport", "sim", "temperature")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "22.00 °C")

	code, out = runCLI(t, "--transport", "sim", "--family", "HMC5883L", "temperature")
	assert.Equal(t, 1, code)
	assert.NotContains(t, out, "°C")
}

func TestDiagnostics_Sim(t *testing.T) {
	code, out := runCLI(t, "--transport", "sim", "id")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "H43")

	code, out = runCLI(t, "--transport", "sim", "status")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "family: HMC5983")
	assert.Contains(t, out, "ready: true")
}

func TestConfigure_Sim(t *testing.T) {
	code, out := runCLI(t, "--transport", "sim", "configure", "--gain", "4.0", "--yes")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "gain: 4")
	assert.Contains(t, out, "configured, state ready")

	code, out = runCLI(t, "--transport", "sim", "configure", "--rate", "75", "--avg", "1", "--yes")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "rate: 75")

	code, _ = runCLI(t, "--transport", "sim", "--family", "HMC5883L", "configure", "--rate", "220", "--yes")
	assert.Equal(t, 1, code)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "magneto.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  kind: spi\n  spi_port: /dev/spidev0.0\nsensor:\n  family: HMC5883L\n  gain: 2.5\n"), 0o600))

	code, out := runCLI(t, "--config", path, "--cs-pin", "GPIO8", "config", "show")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "kind: spi")
	assert.Contains(t, out, "cs_pin: GPIO8")
	assert.Contains(t, out, "family: HMC5883L")
	assert.Contains(t, out, "gain: 2.5")
	assert.Contains(t, out, "averaging: 8")
}

func TestInvalidTransport(t *testing.T) {
	code, _ := runCLI(t, "--transport", "uart", "read")
	assert.Equal(t, 1, code)
}

func TestPrintVectors(t *testing.T) {
	var out bytes.Buffer
	console.SetOutput(&out, &out)
	defer console.SetOutput(os.Stdout, os.Stderr)

	calls := 0
	m := hmc5983.NewMockMagnetometer(func(ctx context.Context) (hmc5983.MagneticVector, error) {
		calls++
		if calls == 2 {
			v := hmc5983.MagneticVector{
				X: hmc5983.Reading{Value: 10},
				Y: hmc5983.Reading{Raw: hmc5983.OverflowSentinel, Overflow: true},
				Z: hmc5983.Reading{Value: 30},
			}
			return v, v.Err()
		}
		return hmc5983.MagneticVector{X: hmc5983.Reading{Value: 100}, Y: hmc5983.Reading{Value: 100}}, nil
	}, nil)

	noWait := magnetometer.DelayFunc(func(ctx context.Context, _ time.Duration) error { return nil })
	require.NoError(t, printVectors(context.Background(), m, 3, time.Second, noWait))
	assert.Equal(t, 3, calls)
	assert.Contains(t, out.String(), "45.0°")
	assert.Contains(t, out.String(), "overflow")
	assert.Contains(t, out.String(), "measurement overflow on axis Y")
	assert.Contains(t, out.String(), "3 readings")
	assert.Contains(t, out.String(), "X: 70.00 ± 42.43")
	assert.Contains(t, out.String(), "Y: 100.00 ± 0.00")

	err := printTemperature(context.Background(), m)
	assert.Error(t, err)
}

func TestPrintVectors_Continuous(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	m := hmc5983.NewMockMagnetometer(func(ctx context.Context) (hmc5983.MagneticVector, error) {
		calls++
		if calls == 5 {
			cancel()
		}
		return hmc5983.MagneticVector{}, nil
	}, nil)
	var out bytes.Buffer
	console.SetOutput(&out, &out)
	defer console.SetOutput(os.Stdout, os.Stderr)

	require.NoError(t, printVectors(ctx, m, 0, time.Millisecond, magnetometer.SleepDelayer{}))
	assert.Equal(t, 5, calls)
}

func TestStream_NoOutputs(t *testing.T) {
	code, _ := runCLI(t, "--transport", "sim", "stream")
	assert.Equal(t, 1, code)
}
