// Package drive sends wheel-speed commands to the motor controller over a
// serial link.
//
// Each command is one ASCII line, "W,<left>,<right>\n", with speeds in m/s
// to four decimal places.
package drive

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/monitoring"
)

// ErrWriteFailed is returned when the port accepts fewer bytes than a full
// command line.
var ErrWriteFailed = errors.New("failed to write to serial port")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("drive closed")

// Driver writes wheel commands to a Port. It implements loop.Sink.
type Driver struct {
	mu     sync.Mutex
	port   Port
	closed bool
	sent   int
	left   float64
	right  float64
	logf   func(format string, v ...interface{})
}

// NewDriver wraps an open port.
func NewDriver(port Port) *Driver {
	return &Driver{port: port, logf: monitoring.Component("drive")}
}

// FormatCommand renders the wire line for a wheel command.
func FormatCommand(left, right float64) string {
	return fmt.Sprintf("W,%.4f,%.4f\n", left, right)
}

// Send writes one wheel command.
func (d *Driver) Send(left, right float64) error {
	if math.IsNaN(left) || math.IsInf(left, 0) || math.IsNaN(right) || math.IsInf(right, 0) {
		return fmt.Errorf("refusing non-finite wheel command (%v, %v)", left, right)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	line := FormatCommand(left, right)
	n, err := d.port.Write([]byte(line))
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	d.sent++
	d.left, d.right = left, right
	return nil
}

// Publish sends the tick's command when the loop marked it for dispatch.
// Refused and held ticks write nothing.
func (d *Driver) Publish(_ context.Context, tick loop.Tick) error {
	if !tick.Dispatched || tick.Command == nil {
		return nil
	}
	if err := d.Send(tick.Command.Left, tick.Command.Right); err != nil {
		return fmt.Errorf("tick %d: %w", tick.Seq, err)
	}
	return nil
}

// Stop commands both wheels to zero.
func (d *Driver) Stop() error { return d.Send(0, 0) }

// Last returns the most recently sent command and how many have been sent.
func (d *Driver) Last() (left, right float64, sent int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.left, d.right, d.sent
}

// Close stops the vehicle and closes the port. The port is closed even if
// the stop command fails.
func (d *Driver) Close() error {
	stopErr := d.Stop()
	if stopErr != nil && !errors.Is(stopErr, ErrClosed) {
		d.logf("stop before close: %v", stopErr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return errors.Join(stopErr, d.port.Close())
}
