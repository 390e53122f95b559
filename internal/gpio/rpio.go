//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// RPIOPort reads GPIO by mapping /dev/gpiomem. Raspberry Pi only.
type RPIOPort struct {
	configured map[int]bool
}

// NewRPIOPort maps GPIO memory.
func NewRPIOPort() (*RPIOPort, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &RPIOPort{configured: make(map[int]bool)}, nil
}

// Configure sets the pin as input and selects the internal pull.
func (p *RPIOPort) Configure(pin int, mode switchctl.Mode) error {
	if pin < 0 || pin > 53 {
		return fmt.Errorf("pin %d out of range", pin)
	}
	rp := rpio.Pin(pin)
	rp.Input()
	if mode == switchctl.ModeInputPullUp {
		rp.PullUp()
	} else {
		rp.PullOff()
	}
	p.configured[pin] = true
	return nil
}

// Level returns the raw level of a configured pin.
func (p *RPIOPort) Level(pin int) (switchctl.Level, error) {
	if !p.configured[pin] {
		return switchctl.Low, fmt.Errorf("pin %d not configured", pin)
	}
	return switchctl.Level(rpio.Pin(pin).Read() == rpio.High), nil
}

// Close restores pull-downs and unmaps GPIO memory.
func (p *RPIOPort) Close() error {
	for pin := range p.configured {
		rpio.Pin(pin).PullDown()
		delete(p.configured, pin)
	}
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpiomem: %w", err)
	}
	return nil
}
