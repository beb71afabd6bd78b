package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"
	gobotspi "gobot.io/x/gobot/v2/drivers/spi"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/adapter"
	"github.com/mklimuk/magnetometer/config"
	"github.com/mklimuk/magnetometer/hmc5983"
	"github.com/mklimuk/magnetometer/i2c"
	"github.com/mklimuk/magnetometer/sim"
	"github.com/mklimuk/magnetometer/snsctx"
	"github.com/mklimuk/magnetometer/spi"
	"github.com/mklimuk/magnetometer/transport"
)

var globalFlags = []cli.Flag{
	&cli.BoolFlag{Name: "verbose", Usage: "enable verbose logging and bus dumps"},
	&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
	&cli.StringFlag{Name: "transport", Aliases: []string{"t"}, Usage: "i2c, spi, mcp2221 or sim"},
	&cli.StringFlag{Name: "i2c-bus", Usage: "I2C bus name, e.g. /dev/i2c-1"},
	&cli.UintFlag{Name: "address", Usage: "7-bit I2C address"},
	&cli.StringFlag{Name: "spi-port", Usage: "SPI port name, e.g. /dev/spidev0.0"},
	&cli.StringFlag{Name: "cs-pin", Usage: "GPIO driving chip select; empty when the controller does"},
	&cli.StringFlag{Name: "spi-backend", Usage: "periph or gobot"},
	&cli.StringFlag{Name: "family", Aliases: []string{"f"}, Usage: "HMC5843, HMC5883L or HMC5983"},
}

// loadConfig reads the configuration file when given and applies flag
// overrides on top.
func loadConfig(c *cli.Context) (config.File, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("transport") {
		cfg.Transport.Kind = c.String("transport")
	}
	if c.IsSet("i2c-bus") {
		cfg.Transport.I2CBus = c.String("i2c-bus")
	}
	if c.IsSet("address") {
		cfg.Transport.Address = uint8(c.Uint("address"))
	}
	if c.IsSet("spi-port") {
		cfg.Transport.SPIPort = c.String("spi-port")
	}
	if c.IsSet("cs-pin") {
		cfg.Transport.CSPin = c.String("cs-pin")
	}
	if c.IsSet("spi-backend") {
		cfg.Transport.SPIBackend = c.String("spi-backend")
	}
	if c.IsSet("family") {
		cfg.Sensor.Family = c.String("family")
	}
	return cfg, cfg.Validate()
}

func commandContext(c *cli.Context) context.Context {
	return snsctx.SetVerbose(c.Context, c.Bool("verbose"))
}

// simulated is the field reported by the sim transport.
func simulated(family hmc5983.Family) *sim.HMC5983 {
	dev := sim.New(sim.WithAxisOrder(family.Order.String()))
	dev.SetField(215, -48, 412)
	dev.SetTemperature(-384)
	return dev
}

// openTransport opens the bus described by cfg. The returned closer releases
// it.
func openTransport(ctx context.Context, cfg config.Transport, family hmc5983.Family) (magnetometer.Transport, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Kind {
	case config.TransportSim:
		return transport.NewI2C(simulated(family), transport.WithAddress(cfg.Address)), noop, nil
	case config.TransportMCP2221:
		bridge := adapter.NewMCP2221()
		if err := bridge.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return transport.NewI2C(bridge, transport.WithAddress(cfg.Address)), releaser(bridge), nil
	case config.TransportI2C:
		bus, err := i2c.NewGenericBus(cfg.I2CBus)
		if err != nil {
			return nil, nil, err
		}
		return transport.NewI2C(bus, transport.WithAddress(cfg.Address)), bus.Close, nil
	case config.TransportSPI:
		var cs magnetometer.ChipSelect
		if cfg.CSPin != "" {
			pin, err := spi.OpenPinSelect(cfg.CSPin)
			if err != nil {
				return nil, nil, err
			}
			cs = pin
		}
		if cfg.SPIBackend == config.BackendGobot {
			conn := spi.NewGobotConn(nanopi.NewNeoAdaptor(), gobotspi.WithBusNumber(0), gobotspi.WithChipNumber(0))
			if err := conn.Start(); err != nil {
				return nil, nil, fmt.Errorf("SPI device start error: %w", err)
			}
			return transport.NewSPI(conn, cs), conn.Halt, nil
		}
		conn, err := spi.Open(cfg.SPIPort)
		if err != nil {
			return nil, nil, err
		}
		return transport.NewSPI(conn, cs), conn.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", cfg.Kind)
}

// releaseTimeout bounds the bus release done on shutdown, after the command
// context may already be cancelled.
const releaseTimeout = time.Second

// releaser cancels whatever transfer the bus engine still holds.
func releaser(bus interface{ Release(ctx context.Context) error }) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := bus.Release(ctx); err != nil {
			return fmt.Errorf("could not release bus: %w", err)
		}
		return nil
	}
}

// openDevice builds the driver without initializing it.
func openDevice(c *cli.Context) (*hmc5983.Device, config.File, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cfg, nil, err
	}
	family, devCfg, err := cfg.Sensor.Device()
	if err != nil {
		return nil, cfg, nil, err
	}
	t, closer, err := openTransport(commandContext(c), cfg.Transport, family)
	if err != nil {
		return nil, cfg, nil, err
	}
	release := func() {
		if err := closer(); err != nil {
			slog.Warn("could not close bus", "error", err)
		}
	}
	dev := hmc5983.New(t, hmc5983.WithFamily(family), hmc5983.WithConfig(devCfg))
	return dev, cfg, release, nil
}
