// Package stream samples a magnetometer periodically and fans the readings out
// to publishers such as an MQTT broker or WebSocket clients.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/mklimuk/magnetometer"
	"github.com/mklimuk/magnetometer/hmc5983"
)

// Sample is the JSON document published for every reading. Overflowed axes
// carry a null value and are listed in Overflow.
type Sample struct {
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Z           *float64 `json:"z"`
	RawX        int16    `json:"raw_x"`
	RawY        int16    `json:"raw_y"`
	RawZ        int16    `json:"raw_z"`
	Unit        string   `json:"unit"`
	Norm        *float64 `json:"norm,omitempty"`
	Overflow    []string `json:"overflow,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Time        string   `json:"time"`
}

// NewSample converts a reading taken at t.
func NewSample(v hmc5983.MagneticVector, t time.Time) Sample {
	s := Sample{
		RawX: v.X.Raw,
		RawY: v.Y.Raw,
		RawZ: v.Z.Raw,
		Unit: v.Unit.String(),
		Time: t.UTC().Format(time.RFC3339Nano),
	}
	valid := true
	axis := func(a hmc5983.Axis) *float64 {
		r := v.Axis(a)
		if r.Overflow {
			valid = false
			s.Overflow = append(s.Overflow, a.String())
			return nil
		}
		val := r.Value
		return &val
	}
	s.X = axis(hmc5983.AxisX)
	s.Y = axis(hmc5983.AxisY)
	s.Z = axis(hmc5983.AxisZ)
	if valid {
		norm := math.Sqrt(*s.X**s.X + *s.Y**s.Y + *s.Z**s.Z)
		s.Norm = &norm
	}
	return s
}

// Source is what Run samples. *hmc5983.Device and *hmc5983.MockMagnetometer
// both qualify.
type Source interface {
	ReadMagVector(ctx context.Context) (hmc5983.MagneticVector, error)
	ReadTemperature(ctx context.Context) (float64, error)
}

type Publisher interface {
	Publish(ctx context.Context, s Sample) error
}

type Options struct {
	Interval time.Duration
	// Temperature adds the die temperature to every sample.
	Temperature bool
	Delay       magnetometer.Delayer
	Now         func() time.Time
}

// Run samples src every Interval until ctx is done. Read and publish failures
// are logged and do not stop the loop, except for ErrNotReady which means the
// device has to be initialized again.
func Run(ctx context.Context, src Source, opts Options, pubs ...Publisher) error {
	if opts.Delay == nil {
		opts.Delay = magnetometer.SleepDelayer{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for first := true; ; first = false {
		if !first {
			if err := opts.Delay.Delay(ctx, opts.Interval); err != nil {
				return ignoreDone(err)
			}
		}
		v, err := src.ReadMagVector(ctx)
		if err != nil && !errors.Is(err, hmc5983.ErrOverflow) {
			if errors.Is(err, hmc5983.ErrNotReady) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			slog.WarnContext(ctx, "read error", "error", err)
			continue
		}
		s := NewSample(v, opts.Now())
		if opts.Temperature {
			temp, err := src.ReadTemperature(ctx)
			if err != nil {
				slog.WarnContext(ctx, "temperature read error", "error", err)
			} else {
				s.Temperature = &temp
			}
		}
		for _, p := range pubs {
			if err := p.Publish(ctx, s); err != nil {
				slog.WarnContext(ctx, "publish error", "error", err)
			}
		}
	}
}

func ignoreDone(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
