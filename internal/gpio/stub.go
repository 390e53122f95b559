//go:build !linux

package gpio

import "errors"

// Open returns an error on non-Linux platforms.
func Open(backend Backend, chip string) (Port, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
