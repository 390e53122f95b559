package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Switches      []SwitchJSON `json:"switches"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SwitchJSON is the JSON representation of one switch.
type SwitchJSON struct {
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	State      string `json:"state"`
	Closed     int    `json:"closed"`
	Opened     int    `json:"opened"`
	ReadErrors int    `json:"read_errors"`
	LastChange string `json:"last_change,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64              `json:"poll_ms"`
	HeartbeatMs int64              `json:"heartbeat_ms"`
	Backend     string             `json:"backend"`
	Broker      string             `json:"broker"`
	HTTPPort    string             `json:"http_port"`
	WSBroker    string             `json:"ws_broker,omitempty"`
	Switches    []SwitchConfigJSON `json:"switches"`
}

// SwitchConfigJSON is the JSON representation of one switch's config.
type SwitchConfigJSON struct {
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	PullUp     bool   `json:"pull_up"`
	DebounceMs int64  `json:"debounce_ms"`
}

// StateString renders a switch state, or UNKNOWN before the first read.
func StateString(sw SwitchStatus) string {
	if !sw.Polled {
		return "UNKNOWN"
	}
	return sw.State.String()
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Switches:      make([]SwitchJSON, 0, len(snap.Switches)),
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Backend:     snap.Config.Backend,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
			Switches:    make([]SwitchConfigJSON, 0, len(snap.Config.Switches)),
		},
	}

	for _, sw := range snap.Switches {
		sj := SwitchJSON{
			Name:       sw.Name,
			Pin:        sw.Pin,
			State:      StateString(sw),
			Closed:     sw.Closed,
			Opened:     sw.Opened,
			ReadErrors: sw.ReadErrors,
		}
		if !sw.LastChange.IsZero() {
			sj.LastChange = sw.LastChange.UTC().Format(time.RFC3339)
		}
		inner.Switches = append(inner.Switches, sj)
	}
	for _, sc := range snap.Config.Switches {
		inner.Config.Switches = append(inner.Config.Switches, SwitchConfigJSON(sc))
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
