package sim

import (
	"context"
)

const (
	spiRead = 0x80
	spiInc  = 0x40
)

// Transfer implements the four-wire framing: bit 7 of the first byte selects a
// read, bit 6 enables register auto-increment and bits 5:0 hold the address.
func (s *HMC5983) Transfer(ctx context.Context, w, r []byte) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.csAttach && !s.selected {
		return ErrChipNotSelected
	}
	if len(w) == 0 {
		return nil
	}
	reg := w[0] & 0x3F
	if w[0]&spiRead != 0 {
		if w[0]&spiInc == 0 && len(r) > 1 {
			// without auto-increment the same register is clocked out repeatedly
			for i := range r {
				if err := s.read(reg, r[i:i+1]); err != nil {
					return err
				}
			}
			return nil
		}
		return s.read(reg, r)
	}
	for i, b := range w[1:] {
		next := reg
		if w[0]&spiInc != 0 {
			next += byte(i)
		}
		if err := s.write(next, b); err != nil {
			return err
		}
	}
	return nil
}

// CS returns the chip-select line of the model. Once attached, transfers fail
// unless the line is asserted.
func (s *HMC5983) CS() *ChipSelect {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.csAttach = true
	return &ChipSelect{dev: s}
}

// Selected reports whether chip select is currently asserted.
func (s *HMC5983) Selected() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.selected
}

// SelectCounts returns how many times chip select was asserted and released.
func (s *HMC5983) SelectCounts() (selects, deselects int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.selects, s.deselects
}

type ChipSelect struct {
	dev *HMC5983
}

func (c *ChipSelect) Select() error {
	c.dev.mx.Lock()
	defer c.dev.mx.Unlock()
	c.dev.selected = true
	c.dev.selects++
	return nil
}

func (c *ChipSelect) Deselect() error {
	c.dev.mx.Lock()
	defer c.dev.mx.Unlock()
	c.dev.selected = false
	c.dev.deselects++
	return nil
}
