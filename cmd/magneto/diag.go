package main

import (
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/magnetometer/cmd/magneto/console"
	"github.com/mklimuk/magnetometer/hmc5983"
)

var idCmd = cli.Command{
	Name:  "id",
	Usage: "read the identification registers",
	Action: func(c *cli.Context) error {
		dev, _, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()
		id, err := dev.ReadID(commandContext(c))
		if err != nil {
			return console.Exit(1, "could not read identification: %s", console.Red(err))
		}
		if id != hmc5983.Identity {
			return console.Exit(2, "unexpected identification %q (%#x)", id[:], id[:])
		}
		console.PInfof(console.PictoCheck, "identification %s", console.Green(string(id[:])))
		return nil
	},
}

type statusReport struct {
	Family string         `yaml:"family"`
	Status hmc5983.Status `yaml:"status"`
}

var statusCmd = cli.Command{
	Name:  "status",
	Usage: "read the status register",
	Action: func(c *cli.Context) error {
		dev, _, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()
		status, err := dev.ReadStatus(commandContext(c))
		if err != nil {
			return console.Exit(1, "could not read status: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(console.Output())
		err = enc.Encode(statusReport{Family: dev.Family().Name, Status: status})
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
