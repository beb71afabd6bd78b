package hmc5983

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotReady         = errors.New("hmc5983: device not initialized")
	ErrIdentityMismatch = errors.New("hmc5983: unexpected device identity")
	ErrOverflow         = errors.New("hmc5983: measurement overflow")
	ErrConfiguration    = errors.New("hmc5983: configuration read back mismatch")
	ErrInvalidConfig    = errors.New("hmc5983: invalid configuration")
	ErrUnsupported      = errors.New("hmc5983: not supported by device")
)

// IdentityError carries the identification bytes actually read.
type IdentityError struct {
	Got [3]byte
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("hmc5983: unexpected device identity %q (%#x), expected %q", e.Got[:], e.Got[:], Identity[:])
}

func (e *IdentityError) Is(target error) bool {
	return target == ErrIdentityMismatch
}

// OverflowError lists the axes that saturated in a reading. The remaining
// axes of the same reading are valid.
type OverflowError struct {
	Axes []Axis
}

func (e *OverflowError) Error() string {
	names := make([]string, len(e.Axes))
	for i, a := range e.Axes {
		names[i] = a.String()
	}
	return fmt.Sprintf("hmc5983: measurement overflow on axis %s", strings.Join(names, ", "))
}

func (e *OverflowError) Is(target error) bool {
	return target == ErrOverflow
}
