//go:build linux

package gpio

import (
	"errors"
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// PeriphPort reads GPIO through the periph.io pin registry.
// Pins are addressed by their BCM numbers.
type PeriphPort struct {
	pins map[int]pgpio.PinIO
}

// NewPeriphPort initialises the periph host drivers.
func NewPeriphPort() (*PeriphPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &PeriphPort{pins: make(map[int]pgpio.PinIO)}, nil
}

// Configure sets the pin as an input with edge detection disabled.
func (p *PeriphPort) Configure(pin int, mode switchctl.Mode) error {
	io := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if io == nil {
		return fmt.Errorf("pin GPIO%d not found", pin)
	}
	pull := pgpio.Float
	if mode == switchctl.ModeInputPullUp {
		pull = pgpio.PullUp
	}
	if err := io.In(pull, pgpio.NoEdge); err != nil {
		return fmt.Errorf("configure GPIO%d: %w", pin, err)
	}
	p.pins[pin] = io
	return nil
}

// Level returns the raw level of a configured pin.
func (p *PeriphPort) Level(pin int) (switchctl.Level, error) {
	io, ok := p.pins[pin]
	if !ok {
		return switchctl.Low, fmt.Errorf("pin %d not configured", pin)
	}
	return switchctl.Level(io.Read() == pgpio.High), nil
}

// Close halts every configured pin.
func (p *PeriphPort) Close() error {
	var errs []error
	for pin, io := range p.pins {
		if err := io.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt GPIO%d: %w", pin, err))
		}
		delete(p.pins, pin)
	}
	return errors.Join(errs...)
}
