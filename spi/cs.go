package spi

import (
	"fmt"

	"github.com/mklimuk/magnetometer"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

var _ magnetometer.ChipSelect = &PinSelect{}

// PinSelect drives an active-low chip select from a GPIO line.
type PinSelect struct {
	pin gpio.PinOut
}

// OpenPinSelect looks the pin up by name, e.g. "GPIO8", and releases it.
func OpenPinSelect(name string) (*PinSelect, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("could not find gpio pin %q", name)
	}
	cs := NewPinSelect(p)
	if err := cs.Deselect(); err != nil {
		return nil, err
	}
	return cs, nil
}

func NewPinSelect(pin gpio.PinOut) *PinSelect {
	return &PinSelect{pin: pin}
}

func (p *PinSelect) Select() error {
	if err := p.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("could not assert chip select %s: %w", p.pin, err)
	}
	return nil
}

func (p *PinSelect) Deselect() error {
	if err := p.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("could not release chip select %s: %w", p.pin, err)
	}
	return nil
}
