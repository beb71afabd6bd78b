package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/hmc5983"
	"github.com/mklimuk/magnetometer/sim"
	"github.com/mklimuk/magnetometer/transport"
)

var families = []string{"HMC5843", "HMC5883L", "HMC5983"}

// SmokeCmd initializes every chip family over every transport against the
// register simulator and reads one vector.
func SmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the driver against the simulated sensor on all transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, name := range families {
				family, err := hmc5983.FamilyByName(name)
				if err != nil {
					return err
				}
				for bus, t := range simTransports(family) {
					if err := smoke(cmd.Context(), family, t); err != nil {
						slog.Error("smoke run failed", "family", name, "bus", bus, "error", err)
						failed++
						continue
					}
					slog.Info("smoke run passed", "family", name, "bus", bus)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d smoke runs failed", failed)
			}
			return nil
		},
	}
	return cmd
}

func simTransports(family hmc5983.Family) map[string]magnetometer.Transport {
	chip := func() *sim.HMC5983 {
		dev := sim.New(sim.WithAxisOrder(family.Order.String()))
		dev.SetField(100, -100, 50)
		return dev
	}
	spiChip := chip()
	return map[string]magnetometer.Transport{
		"i2c":           transport.NewI2C(chip()),
		"i2c-two-phase": transport.NewI2C(chip().TwoPhase()),
		"spi":           transport.NewSPI(spiChip, spiChip.CS()),
	}
}

func smoke(ctx context.Context, family hmc5983.Family, t magnetometer.Transport) error {
	dev := hmc5983.New(t, hmc5983.WithFamily(family))
	noWait := magnetometer.DelayFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	if err := dev.Init(ctx, noWait); err != nil {
		return err
	}
	v, err := dev.ReadMagVector(ctx)
	if err != nil {
		return err
	}
	if v.X.Raw != 100 || v.Y.Raw != -100 || v.Z.Raw != 50 {
		return fmt.Errorf("unexpected raw sample %d/%d/%d", v.X.Raw, v.Y.Raw, v.Z.Raw)
	}
	slog.Debug("vector", "x", v.X.Value, "y", v.Y.Value, "z", v.Z.Value, "unit", v.Unit)
	return nil
}
