// Package config loads the switch-sensor daemon configuration from YAML.
//
// Every field has a default, so an empty file (or no file at all) yields a
// single switch on the default pin. Command-line flags are applied on top by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/switch-sensor/internal/events"
	"github.com/sweeney/switch-sensor/internal/gpio"
	"github.com/sweeney/switch-sensor/internal/kafkabus"
	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// Defaults.
const (
	DefaultPoll      = 10 * time.Millisecond
	DefaultHeartbeat = 15 * time.Minute
	DefaultBroker    = "tcp://192.168.1.200:1883"
	DefaultClientID  = "switch-sensor"
	DefaultHTTP      = ":80"
	DefaultWSBroker  = "=broker"
)

// Config is the daemon configuration.
type Config struct {
	Poll          time.Duration `yaml:"poll"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
	Broker        string        `yaml:"broker"`
	ClientID      string        `yaml:"client_id"`
	HTTP          string        `yaml:"http"`
	WSBroker      string        `yaml:"ws_broker"`
	Backend       string        `yaml:"backend"`
	Chip          string        `yaml:"chip"`
	PayloadFormat string        `yaml:"payload_format"`
	MDNS          bool          `yaml:"mdns"`
	Kafka         Kafka         `yaml:"kafka"`
	Switches      []Switch      `yaml:"switches"`
}

// Kafka configures the optional Kafka sink. No brokers disables it; an empty
// topic falls back to kafkabus.DefaultTopic.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Switch configures one debounced input.
// PullUp and Debounce are pointers so that an explicit false or 0 survives
// defaulting.
type Switch struct {
	Name     string         `yaml:"name"`
	Pin      int            `yaml:"pin"`
	PullUp   *bool          `yaml:"pull_up"`
	Debounce *time.Duration `yaml:"debounce"`
}

// IsPullUp reports whether the pin uses the internal pull-up (default true).
func (s Switch) IsPullUp() bool {
	return s.PullUp == nil || *s.PullUp
}

// DebounceWindow returns the configured window or switchctl.DefaultDebounce.
func (s Switch) DebounceWindow() time.Duration {
	if s.Debounce == nil {
		return switchctl.DefaultDebounce
	}
	return *s.Debounce
}

// Default returns a config with one switch on gpio.DefaultPin.
func Default() Config {
	return Config{
		Poll:          DefaultPoll,
		Heartbeat:     DefaultHeartbeat,
		Broker:        DefaultBroker,
		ClientID:      DefaultClientID,
		HTTP:          DefaultHTTP,
		WSBroker:      DefaultWSBroker,
		Backend:       string(gpio.BackendChip),
		Chip:          gpio.DefaultChip,
		PayloadFormat: string(events.FormatJSON),
		Kafka:         Kafka{Topic: kafkabus.DefaultTopic},
		Switches:      []Switch{{Name: "switch", Pin: gpio.DefaultPin}},
	}
}

// Parse decodes YAML over the defaults and validates the result.
// A switches list in data replaces the default switch.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error

	if c.Poll <= 0 {
		errs = append(errs, fmt.Errorf("poll must be positive, got %v", c.Poll))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if _, err := gpio.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if _, err := events.ParseFormat(c.PayloadFormat); err != nil {
		errs = append(errs, err)
	}

	if len(c.Switches) == 0 {
		errs = append(errs, errors.New("at least one switch is required"))
	}
	names := make(map[string]bool, len(c.Switches))
	pins := make(map[int]bool, len(c.Switches))
	for i, s := range c.Switches {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("switches[%d]: name is required", i))
		case names[s.Name]:
			errs = append(errs, fmt.Errorf("switches[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true

		if s.Pin < 0 {
			errs = append(errs, fmt.Errorf("switches[%d]: pin must not be negative, got %d", i, s.Pin))
		} else if pins[s.Pin] {
			errs = append(errs, fmt.Errorf("switches[%d]: pin %d already used", i, s.Pin))
		}
		pins[s.Pin] = true

		if d := s.DebounceWindow(); d < 0 || d > switchctl.MaxDebounce {
			errs = append(errs, fmt.Errorf("switches[%d]: debounce out of range: %v", i, d))
		}
	}

	return errors.Join(errs...)
}
