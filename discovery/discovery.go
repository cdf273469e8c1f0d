// Package discovery locates the serial port a servo bus adapter is
// attached to, using the device-name conventions of each platform.
package discovery

import (
	"errors"
	"runtime"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrPortNotFound is returned when no candidate serial port is present.
var ErrPortNotFound = errors.New("no suitable serial port found for servo communication")

// FindPort returns the first serial port that looks like a USB servo bus
// adapter on this platform.
func FindPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", err
	}

	for _, port := range ports {
		if matches(runtime.GOOS, port.Name) {
			return port.Name, nil
		}
	}
	return "", ErrPortNotFound
}

// matches reports whether a device name follows the USB serial adapter
// naming convention for the given platform.
func matches(goos, name string) bool {
	switch goos {
	case "darwin":
		return strings.Contains(name, "usbmodem") || strings.Contains(name, "usbserial")
	case "linux":
		return strings.Contains(name, "ttyUSB") || strings.Contains(name, "ttyACM")
	default:
		return strings.Contains(name, "COM")
	}
}
