// Package status provides a thread-safe status tracker for the switch-sensor daemon.
// It is read by HTTP handlers and used to build MQTT status events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// SwitchConfig describes one configured switch for display.
type SwitchConfig struct {
	Name       string
	Pin        int
	PullUp     bool
	DebounceMs int64
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Backend     string
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
	Switches    []SwitchConfig
}

// SwitchStatus is the live state of one switch.
type SwitchStatus struct {
	Name       string
	Pin        int
	State      switchctl.State // always a steady value
	Polled     bool            // at least one successful read
	Closed     int             // transitions to ON since startup
	Opened     int             // transitions to OFF since startup
	ReadErrors int
	LastChange time.Time // zero until the first transition
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Switches      []SwitchStatus
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every switch has been read at least once.
func (s Snapshot) Ready() bool {
	for _, sw := range s.Switches {
		if !sw.Polled {
			return false
		}
	}
	return len(s.Switches) > 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu    sync.RWMutex
	snap  Snapshot
	index map[string]int
}

// NewTracker creates a Tracker with the given start time and config.
// One SwitchStatus is created per configured switch, in config order.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		index: make(map[string]int, len(cfg.Switches)),
	}
	for i, sc := range cfg.Switches {
		t.index[sc.Name] = i
		t.snap.Switches = append(t.snap.Switches, SwitchStatus{Name: sc.Name, Pin: sc.Pin})
	}
	return t
}

// UpdateState sets the steady state of a switch after a successful read.
// Called from runLoop on every tick. Unknown names are ignored.
func (t *Tracker) UpdateState(name string, s switchctl.State) {
	t.mu.Lock()
	if i, ok := t.index[name]; ok {
		t.snap.Switches[i].State = s.Steady()
		t.snap.Switches[i].Polled = true
	}
	t.mu.Unlock()
}

// RecordTransition counts an accepted transition.
func (t *Tracker) RecordTransition(name string, s switchctl.State, at time.Time) {
	t.mu.Lock()
	if i, ok := t.index[name]; ok {
		sw := &t.snap.Switches[i]
		sw.State = s.Steady()
		sw.LastChange = at
		if s.IsOn() {
			sw.Closed++
		} else {
			sw.Opened++
		}
	}
	t.mu.Unlock()
}

// RecordError counts a failed read.
func (t *Tracker) RecordError(name string) {
	t.mu.Lock()
	if i, ok := t.index[name]; ok {
		t.snap.Switches[i].ReadErrors++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Switches = append([]SwitchStatus(nil), t.snap.Switches...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Heartbeat decides when a periodic status event is due.
type Heartbeat struct {
	interval time.Duration
	last     time.Time
}

// NewHeartbeat schedules the first beat one interval after start.
// An interval <= 0 disables heartbeats.
func NewHeartbeat(start time.Time, interval time.Duration) *Heartbeat {
	return &Heartbeat{interval: interval, last: start}
}

// Due reports whether the interval has elapsed since the last beat and, if so,
// starts a new interval at now.
func (h *Heartbeat) Due(now time.Time) bool {
	if h.interval <= 0 {
		return false
	}
	if now.Sub(h.last) < h.interval {
		return false
	}
	h.last = now
	return true
}
