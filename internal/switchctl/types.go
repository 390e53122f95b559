// Package switchctl contains the debounce state machine for a single switch.
// This package has NO hardware or network dependencies. Pin access, the
// millisecond clock and event dispatch are all injected.
package switchctl

import "time"

// State is the value reported by Read.
// Bit 0 is the switch level (1 = ON). Bit 1 is set only on the call where a
// transition to that level was accepted.
type State uint8

const (
	Off    State = 0b00 // steady OFF
	On     State = 0b01 // steady ON
	Opened State = 0b10 // transition to OFF
	Closed State = 0b11 // transition to ON

	Released = Opened
	Pressed  = Closed
)

const (
	levelBit      State = 0b01
	transitionBit State = 0b10
)

// IsOn reports whether the level bit is set.
func (s State) IsOn() bool {
	return s&levelBit != 0
}

// IsTransition reports whether s was returned by the call that accepted a transition.
func (s State) IsTransition() bool {
	return s&transitionBit != 0
}

// Steady strips the transition bit.
func (s State) Steady() State {
	return s & levelBit
}

func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case On:
		return "ON"
	case Opened:
		return "OPENED"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Level is a raw electrical pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Mode is the input configuration requested from a Port.
type Mode int

const (
	ModeInput       Mode = iota // floating input, external pull-down expected
	ModeInputPullUp             // input with the internal pull-up enabled
)

func (m Mode) String() string {
	if m == ModeInputPullUp {
		return "input-pullup"
	}
	return "input"
}

// Port configures and samples input pins.
type Port interface {
	Configure(pin int, mode Mode) error
	Level(pin int) (Level, error)
}

// Clock returns a monotonic millisecond timestamp. Values wrap at 2^32.
type Clock func() uint32

// SystemClock returns a Clock driven by Go's monotonic clock, starting at zero.
func SystemClock() Clock {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}

// EventID identifies the notification emitted on a transition.
type EventID string

// SwitchEvent is the default EventID.
const SwitchEvent EventID = "SWITCH"

// Dispatcher receives transition notifications. It is called synchronously
// from Read, once per accepted transition.
type Dispatcher func(id EventID, s State)

// Pollable is anything the daemon can sample on each tick.
type Pollable interface {
	Poll() error
}
