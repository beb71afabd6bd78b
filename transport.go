package magnetometer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("transport failure")

// Transport is the register-level view of a device shared by all buses.
type Transport interface {
	WriteRegister(ctx context.Context, reg byte, value byte) error
	ReadRegisters(ctx context.Context, reg byte, buf []byte) error
}

// TransportError reports a failed byte transfer. The underlying bus error is
// kept for inspection but callers are not expected to branch on it.
type TransportError struct {
	Op       string
	Register byte
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s register %#04x: %v", e.Op, e.Register, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Delayer is the host wait capability used while the device settles.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}

// DelayFunc adapts a plain function to Delayer.
type DelayFunc func(ctx context.Context, d time.Duration) error

func (f DelayFunc) Delay(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// SleepDelayer waits on a timer and gives up early when ctx is done.
type SleepDelayer struct{}

func (SleepDelayer) Delay(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
