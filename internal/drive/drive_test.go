package drive

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/intnav/internal/config"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/navcore"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, got)
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "X"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.Normalize()
			assert.Error(t, err)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 7, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	mode, err = PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{Parity: "mark"}.SerialMode()
	assert.Error(t, err)
}

func TestPortOptionsFromTuning(t *testing.T) {
	opts := PortOptionsFromTuning(config.EmptyTuningConfig())
	assert.Equal(t, 115200, opts.BaudRate)
	assert.Equal(t, "N", opts.Parity)
}

func TestOpenSerialRejectsBadOptions(t *testing.T) {
	_, err := OpenSerial("/dev/null", PortOptions{DataBits: 4})
	assert.Error(t, err)
}

func TestDriverSend(t *testing.T) {
	port := &MockPort{}
	d := NewDriver(port)

	require.NoError(t, d.Send(0.05, 0.15))
	require.NoError(t, d.Send(-0.1, 0.1))
	assert.Equal(t, "W,0.0500,0.1500\nW,-0.1000,0.1000\n", port.Written())

	left, right, sent := d.Last()
	assert.Equal(t, -0.1, left)
	assert.Equal(t, 0.1, right)
	assert.Equal(t, 2, sent)
}

func TestDriverSendErrors(t *testing.T) {
	t.Run("non-finite", func(t *testing.T) {
		port := &MockPort{}
		assert.Error(t, NewDriver(port).Send(math.NaN(), 0))
		assert.Empty(t, port.Written())
	})

	t.Run("write error", func(t *testing.T) {
		boom := errors.New("unplugged")
		err := NewDriver(&MockPort{WriteError: boom}).Send(0, 0)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("short write", func(t *testing.T) {
		err := NewDriver(&MockPort{ShortWrite: true}).Send(0, 0)
		assert.ErrorIs(t, err, ErrWriteFailed)
	})
}

func TestDriverPublish(t *testing.T) {
	port := &MockPort{}
	d := NewDriver(port)
	ctx := context.Background()
	cmd := &pursuit.Command{Left: 0.1, Right: 0.1}

	require.NoError(t, d.Publish(ctx, loop.Tick{Seq: 1, Err: navcore.ErrUninitializedEstimator}))
	require.NoError(t, d.Publish(ctx, loop.Tick{Seq: 2, Command: cmd, Held: true}))
	assert.Empty(t, port.Written(), "refused and held ticks must not write")

	require.NoError(t, d.Publish(ctx, loop.Tick{Seq: 3, Command: cmd, Dispatched: true}))
	assert.Equal(t, "W,0.1000,0.1000\n", port.Written())
}

func TestDriverClose(t *testing.T) {
	port := &MockPort{}
	d := NewDriver(port)
	require.NoError(t, d.Send(0.2, 0.2))

	require.NoError(t, d.Close())
	assert.True(t, port.Closed)
	assert.Equal(t, "W,0.2000,0.2000\nW,0.0000,0.0000\n", port.Written())

	assert.ErrorIs(t, d.Send(0.1, 0.1), ErrClosed)
	assert.NoError(t, d.Close())
}
