// Package events defines the transition notification published by the daemon
// and its wire encodings.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// Event is one accepted switch transition.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Switch    string // configured switch name
	Pin       int
	EventID   switchctl.EventID
	State     switchctl.State // Opened or Closed
}

// New stamps a transition with a fresh ID.
func New(now time.Time, name string, pin int, id switchctl.EventID, s switchctl.State) Event {
	return Event{
		ID:        uuid.New(),
		Timestamp: now,
		Switch:    name,
		Pin:       pin,
		EventID:   id,
		State:     s,
	}
}

// Format selects the payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCBOR:
		return f, nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown payload format %q", s)
}

// Payload represents the message payload structure.
type Payload struct {
	Switch SwitchPayload `json:"switch" cbor:"switch"`
}

// SwitchPayload contains the transition details.
type SwitchPayload struct {
	ID        string `json:"id" cbor:"id"`
	Timestamp string `json:"timestamp" cbor:"timestamp"`
	Name      string `json:"name" cbor:"name"`
	Pin       int    `json:"pin" cbor:"pin"`
	Source    string `json:"source" cbor:"source"`
	Event     string `json:"event" cbor:"event"` // OPENED or CLOSED
	State     string `json:"state" cbor:"state"` // steady level after the transition
}

// ToPayload converts an Event to its payload form.
func ToPayload(e Event) Payload {
	return Payload{
		Switch: SwitchPayload{
			ID:        e.ID.String(),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
			Name:      e.Switch,
			Pin:       e.Pin,
			Source:    string(e.EventID),
			Event:     e.State.String(),
			State:     e.State.Steady().String(),
		},
	}
}

// Encode serializes an Event in the given format.
func Encode(e Event, f Format) ([]byte, error) {
	p := ToPayload(e)
	switch f {
	case FormatJSON, "":
		return json.Marshal(p)
	case FormatCBOR:
		return cbor.Marshal(p)
	}
	return nil, fmt.Errorf("unknown payload format %q", f)
}

// Decode parses a payload produced by Encode.
func Decode(data []byte, f Format) (Payload, error) {
	var p Payload
	var err error
	switch f {
	case FormatJSON, "":
		err = json.Unmarshal(data, &p)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &p)
	default:
		err = fmt.Errorf("unknown payload format %q", f)
	}
	return p, err
}
