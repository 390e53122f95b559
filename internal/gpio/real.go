//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// ChipPort reads GPIO from actual hardware using the Linux GPIO character device.
type ChipPort struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewChipPort opens the named GPIO chip (e.g. "gpiochip0").
func NewChipPort(name string) (*ChipPort, error) {
	if name == "" {
		name = DefaultChip
	}
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &ChipPort{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// Configure requests the line as an input. ModeInputPullUp enables the
// internal pull-up; ModeInput disables bias and relies on an external resistor.
// Configuring an already requested line reconfigures it.
func (p *ChipPort) Configure(pin int, mode switchctl.Mode) error {
	bias := gpiocdev.WithBiasDisabled
	if mode == switchctl.ModeInputPullUp {
		bias = gpiocdev.WithPullUp
	}

	if line, ok := p.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsInput, bias); err != nil {
			return fmt.Errorf("reconfigure pin %d: %w", pin, err)
		}
		return nil
	}

	line, err := p.chip.RequestLine(pin, gpiocdev.AsInput, bias, gpiocdev.WithConsumer("switch-sensor"))
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	p.lines[pin] = line
	return nil
}

// Level returns the raw level of a configured pin.
func (p *ChipPort) Level(pin int) (switchctl.Level, error) {
	line, ok := p.lines[pin]
	if !ok {
		return switchctl.Low, fmt.Errorf("pin %d not configured", pin)
	}
	v, err := line.Value()
	if err != nil {
		return switchctl.Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return switchctl.Level(v != 0), nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (p *ChipPort) Close() error {
	var errs []error

	for pin, line := range p.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
		delete(p.lines, pin)
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	return errors.Join(errs...)
}
