package drive

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Port is the minimal interface the driver needs from a serial port. It
// allows unit testing without real hardware.
type Port interface {
	io.Writer
	io.Closer
}

// OpenSerial opens the motor controller port at path.
func OpenSerial(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options: %w", err)
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}
