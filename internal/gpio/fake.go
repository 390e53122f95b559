package gpio

import (
	"fmt"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// FakePort is a test double that returns scripted pin levels.
type FakePort struct {
	// Samples contains scripted levels per pin.
	// Each call to Level(pin) consumes the next sample for that pin.
	Samples map[int][]switchctl.Level

	// index tracks current position in Samples per pin
	index map[int]int

	// Modes records the last mode each pin was configured with.
	Modes map[int]switchctl.Mode

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Level()
	ReadError error

	// ConfigureError, if set, will be returned by Configure()
	ConfigureError error
}

// NewFakePort creates a FakePort with the given samples.
func NewFakePort(samples map[int][]switchctl.Level) *FakePort {
	if samples == nil {
		samples = make(map[int][]switchctl.Level)
	}
	return &FakePort{
		Samples: samples,
		index:   make(map[int]int),
		Modes:   make(map[int]switchctl.Mode),
	}
}

// Configure records the requested mode.
func (f *FakePort) Configure(pin int, mode switchctl.Mode) error {
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.Modes[pin] = mode
	return nil
}

// Level returns the next scripted sample for pin.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakePort) Level(pin int) (switchctl.Level, error) {
	if f.ReadError != nil {
		return switchctl.Low, f.ReadError
	}

	samples := f.Samples[pin]
	if len(samples) == 0 {
		return switchctl.Low, fmt.Errorf("no samples configured for pin %d", pin)
	}

	i := f.index[pin]
	if i < len(samples)-1 {
		f.index[pin] = i + 1
	}

	return samples[i], nil
}

// Set replaces the script for pin with a single held level.
func (f *FakePort) Set(pin int, level switchctl.Level) {
	f.Samples[pin] = []switchctl.Level{level}
	f.index[pin] = 0
}

// Close marks the port as closed.
func (f *FakePort) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every pin to the beginning of its samples.
func (f *FakePort) Reset() {
	f.index = make(map[int]int)
	f.Closed = false
}

// Repeat returns n copies of level.
func Repeat(level switchctl.Level, n int) []switchctl.Level {
	out := make([]switchctl.Level, n)
	for i := range out {
		out[i] = level
	}
	return out
}
