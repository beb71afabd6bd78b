package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magnetometer/cmd/magneto/console"
	"github.com/mklimuk/magnetometer/config"
)

var configureCmd = cli.Command{
	Name:  "configure",
	Usage: "initialize the sensor and apply a new configuration",
	Flags: []cli.Flag{
		&cli.Float64Flag{Name: "gain", Usage: "field range in gauss, e.g. 1.3"},
		&cli.Float64Flag{Name: "rate", Usage: "output rate in Hz"},
		&cli.IntFlag{Name: "avg", Usage: "samples averaged per output: 1, 2, 4 or 8"},
		&cli.StringFlag{Name: "mode", Usage: "continuous, single or idle"},
		&cli.StringFlag{Name: "measurement", Usage: "normal, positive-bias, negative-bias or temperature-only"},
		&cli.StringFlag{Name: "unit", Usage: "mG or uT"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		dev, file, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()

		target := file.Sensor
		if c.IsSet("gain") {
			target.Gain = c.Float64("gain")
		}
		if c.IsSet("rate") {
			target.Rate = c.Float64("rate")
		}
		if c.IsSet("avg") {
			target.Averaging = c.Int("avg")
		}
		if c.IsSet("mode") {
			target.Mode = c.String("mode")
		}
		if c.IsSet("measurement") {
			target.Measurement = c.String("measurement")
		}
		if c.IsSet("unit") {
			target.Unit = c.String("unit")
		}
		family, cfg, err := target.Device()
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		file.Sensor = config.FromDevice(family, cfg)
		out, err := file.Marshal()
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		console.Printf("%s", out)
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write configuration to %s?", family.Name))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.Infof("configuration not written")
				return nil
			}
		}

		ctx := commandContext(c)
		if err := dev.Init(ctx, nil); err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		// a gain change alone does not need the settle wait
		gainOnly := dev.Config()
		gainOnly.Gain = cfg.Gain
		if gainOnly == cfg {
			err = dev.SetGain(ctx, cfg.Gain)
		} else {
			err = dev.Configure(ctx, cfg)
		}
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		console.PInfof(console.PictoCheck, "%s configured, state %s", family.Name, console.Green(dev.State()))
		return nil
	},
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "configuration file helpers",
	Subcommands: cli.Commands{
		&configShowCmd,
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		file, err := loadConfig(c)
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		family, cfg, err := file.Sensor.Device()
		if err != nil {
			return console.Exit(1, "invalid configuration: %s", console.Red(err))
		}
		file.Sensor = config.FromDevice(family, cfg)
		out, err := file.Marshal()
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		console.Printf("%s", out)
		return nil
	},
}
