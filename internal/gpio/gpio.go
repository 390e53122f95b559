// Package gpio provides input pin access with hardware abstraction.
// The real implementations use the Linux GPIO character device, periph.io
// or /dev/gpiomem. The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/switch-sensor/internal/switchctl"
)

// Port configures and samples input pins and owns the underlying resources.
type Port interface {
	switchctl.Port

	// Close releases GPIO resources.
	Close() error
}

// Backend selects the GPIO driver.
type Backend string

const (
	BackendChip   Backend = "gpiocdev"
	BackendPeriph Backend = "periph"
	BackendRPIO   Backend = "rpio"
)

// DefaultChip is the GPIO character device used by BackendChip.
const DefaultChip = "gpiochip0"

// DefaultPin is the BCM pin used when no switch is configured.
const DefaultPin = 17

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendChip, BackendPeriph, BackendRPIO:
		return b, nil
	}
	return "", fmt.Errorf("unknown gpio backend %q", s)
}
