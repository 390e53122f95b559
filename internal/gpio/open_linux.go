//go:build linux

package gpio

import "fmt"

// Open returns a Port for the given backend. chip is only used by BackendChip.
func Open(backend Backend, chip string) (Port, error) {
	switch backend {
	case BackendChip, "":
		return NewChipPort(chip)
	case BackendPeriph:
		return NewPeriphPort()
	case BackendRPIO:
		return NewRPIOPort()
	}
	return nil, fmt.Errorf("unknown gpio backend %q", backend)
}
