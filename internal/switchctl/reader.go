package switchctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
)

// DefaultDebounce is the debounce window used when WithDebounce is not given.
const DefaultDebounce = 50 * time.Millisecond

// MaxDebounce is the largest accepted window. Elapsed time is measured modulo
// 2^32 ms, so a window must stay below half the clock range for a change to
// keep firing once polls land past it.
const MaxDebounce = time.Duration(math.MaxInt32) * time.Millisecond

// Reader debounces one switch connected to a digital input pin.
// A Reader is owned by a single goroutine; it does no locking.
type Reader struct {
	port     Port
	pin      int
	inverted bool
	window   uint32 // milliseconds

	candidate      State
	stable         State
	candidateSince uint32

	clock    Clock
	dispatch Dispatcher
	eventID  EventID
	log      *slog.Logger
}

type options struct {
	pullUp   bool
	debounce time.Duration
	clock    Clock
	dispatch Dispatcher
	eventID  EventID
	log      *slog.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithPullDown selects a plain input with an external pull-down resistor.
// The signal is then read non-inverted: HIGH = ON.
func WithPullDown() Option {
	return func(o *options) { o.pullUp = false }
}

// WithDebounce sets the debounce window. Zero disables debouncing.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDispatcher sets the transition callback.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

// WithEventID sets the identifier passed to the dispatcher.
func WithEventID(id EventID) Option {
	return func(o *options) { o.eventID = id }
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New configures pin on port as an input and returns a Reader for it.
//
// By default the internal pull-up is enabled and the signal is inverted, so a
// closed switch (pin pulled to ground) reads as ON.
func New(port Port, pin int, opts ...Option) (*Reader, error) {
	o := options{
		pullUp:   true,
		debounce: DefaultDebounce,
		eventID:  SwitchEvent,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if port == nil {
		return nil, errors.New("switchctl: nil port")
	}
	if o.debounce < 0 {
		return nil, fmt.Errorf("switchctl: negative debounce %v", o.debounce)
	}
	if o.debounce > MaxDebounce {
		return nil, fmt.Errorf("switchctl: debounce %v exceeds %v", o.debounce, MaxDebounce)
	}
	if o.clock == nil {
		o.clock = SystemClock()
	}
	if o.log == nil {
		o.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mode := ModeInput
	if o.pullUp {
		mode = ModeInputPullUp
	}
	if err := port.Configure(pin, mode); err != nil {
		return nil, fmt.Errorf("configure pin %d as %s: %w", pin, mode, err)
	}

	return &Reader{
		port:      port,
		pin:       pin,
		inverted:  o.pullUp,
		window:    uint32(o.debounce / time.Millisecond),
		candidate: Off,
		stable:    Off,
		clock:     o.clock,
		dispatch:  o.dispatch,
		eventID:   o.eventID,
		log:       o.log.With(slog.Int("pin", pin)),
	}, nil
}

// Read samples the pin once and advances the debounce state machine.
//
// It returns the stable level (Off or On), except on the call that accepts a
// transition, where it returns Opened or Closed and notifies the dispatcher.
// If the pin cannot be sampled, the stable level is returned with the error
// and no state changes.
func (r *Reader) Read() (State, error) {
	raw, err := r.port.Level(r.pin)
	if err != nil {
		return r.stable, fmt.Errorf("read pin %d: %w", r.pin, err)
	}

	sample := Off
	if raw == High {
		sample = On
	}
	if r.inverted {
		sample ^= On
	}

	now := r.clock()

	// Any change restarts the window, including bounces while a transition
	// is already pending.
	if sample != r.candidate {
		r.candidate = sample
		r.candidateSince = now
		r.debug("bounce", slog.String("candidate", sample.String()))
	}

	// Modular subtraction keeps the comparison correct across clock wrap.
	if r.candidate != r.stable && now-r.candidateSince >= r.window {
		r.stable = r.candidate
		reported := Opened
		if r.stable == On {
			reported = Closed
		}
		r.debug("transition", slog.String("state", reported.String()))
		if r.dispatch != nil {
			r.dispatch(r.eventID, reported)
		}
		return reported, nil
	}

	return r.stable, nil
}

// Poll reads the switch and discards the result.
func (r *Reader) Poll() error {
	_, err := r.Read()
	return err
}

// Stable returns the last accepted level without sampling the pin.
func (r *Reader) Stable() State {
	return r.stable
}

// Pin returns the pin this Reader samples.
func (r *Reader) Pin() int {
	return r.pin
}

// Inverted reports whether raw levels are flipped (pull-up wiring).
func (r *Reader) Inverted() bool {
	return r.inverted
}

// Window returns the debounce window.
func (r *Reader) Window() time.Duration {
	return time.Duration(r.window) * time.Millisecond
}

func (r *Reader) debug(msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if !r.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	r.log.LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}
