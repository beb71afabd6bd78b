package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/cmd/magneto/console"
	"github.com/mklimuk/magnetometer/hmc5983"
)

type vectorReader interface {
	ReadMagVector(ctx context.Context) (hmc5983.MagneticVector, error)
}

type temperatureReader interface {
	ReadTemperature(ctx context.Context) (float64, error)
}

var readCmd = cli.Command{
	Name:  "read",
	Usage: "initialize the sensor and print field measurements",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: "number of readings, 0 reads until interrupted"},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: 500 * time.Millisecond, Usage: "delay between readings"},
	},
	Action: func(c *cli.Context) error {
		dev, _, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()
		ctx := commandContext(c)
		if err := dev.Init(ctx, nil); err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		err = printVectors(ctx, dev, c.Int("count"), c.Duration("interval"), magnetometer.SleepDelayer{})
		if err != nil {
			return console.Exit(1, "read error: %s", console.Red(err))
		}
		return nil
	},
}

// printVectors prints count readings, or readings until ctx is done when count
// is zero. Saturated axes are reported and do not stop the loop. A per-axis
// summary follows when more than one reading was taken.
func printVectors(ctx context.Context, r vectorReader, count int, interval time.Duration, delay magnetometer.Delayer) error {
	var sum summary
	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			if err := delay.Delay(ctx, interval); err != nil {
				if count == 0 && errors.Is(err, context.Canceled) {
					sum.print()
					return nil
				}
				return err
			}
		}
		v, err := r.ReadMagVector(ctx)
		var ovf *hmc5983.OverflowError
		if err != nil && !errors.As(err, &ovf) {
			return err
		}
		sum.add(v)
		console.PInfof(console.PictoMagnet, "X: %s  Y: %s  Z: %s  %s%s",
			console.White(formatReading(v.X)), console.White(formatReading(v.Y)), console.White(formatReading(v.Z)), v.Unit, heading(v))
		if ovf != nil {
			console.Warnf("%s", ovf)
		}
	}
	sum.print()
	return nil
}

type summary struct {
	n    int
	unit hmc5983.Unit
	axes [3][]float64
}

func (s *summary) add(v hmc5983.MagneticVector) {
	s.n++
	s.unit = v.Unit
	for i, r := range []hmc5983.Reading{v.X, v.Y, v.Z} {
		if !r.Overflow {
			s.axes[i] = append(s.axes[i], r.Value)
		}
	}
}

func (s *summary) print() {
	if s.n < 2 {
		return
	}
	line := ""
	for i, name := range []string{"X", "Y", "Z"} {
		mean, err := stats.Mean(s.axes[i])
		if err != nil {
			line += fmt.Sprintf("  %s: n/a", name)
			continue
		}
		sd, _ := stats.StandardDeviation(s.axes[i])
		line += fmt.Sprintf("  %s: %.2f ± %.2f", name, mean, sd)
	}
	console.Infof("%d readings, mean ± sd%s  %s", s.n, line, s.unit)
}

func formatReading(r hmc5983.Reading) string {
	if r.Overflow {
		return "overflow"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// heading is the angle of the horizontal component for a level sensor.
func heading(v hmc5983.MagneticVector) string {
	if v.X.Overflow || v.Y.Overflow {
		return ""
	}
	deg := math.Atan2(v.Y.Value, v.X.Value) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return fmt.Sprintf("  %s %.1f°", console.PictoCompass, deg)
}

var temperatureCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "initialize the sensor and print the die temperature",
	Action: func(c *cli.Context) error {
		dev, _, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()
		ctx := commandContext(c)
		if err := dev.Init(ctx, nil); err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}
		return printTemperature(ctx, dev)
	},
}

func printTemperature(ctx context.Context, r temperatureReader) error {
	temp, err := r.ReadTemperature(ctx)
	if err != nil {
		return console.Exit(1, "error getting temperature read: %s", console.Red(err))
	}
	console.PInfof(console.PictoThermometer, "%s °C", console.White(fmt.Sprintf("%.2f", temp)))
	return nil
}
