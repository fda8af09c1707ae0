package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damianoneill/screenstream/internal/config"
)

func TestHostUSBLoopWritesEnvelopes(t *testing.T) {
	cfg, err := config.NewStore("")
	require.NoError(t, err)
	c := cfg.Get()
	c.Geometry = config.Geometry{Width: 2, Height: 2}
	require.NoError(t, cfg.Set(c))

	port := &fakeSerialPort{}
	source := &fakeCaptureSource{rgba: make([]byte, 2*2*4), width: 2, height: 2}

	open := func(portName string, baud int) (SerialPort, error) {
		return port, nil
	}

	h := NewHostUSBLoop(open, cfg, source, WithUSBInterFrameDelay(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = h.Run(ctx)
	require.Error(t, err)
	assert.NotEmpty(t, port.written)
}

func TestHostUSBLoopRetriesOnOpenFailure(t *testing.T) {
	cfg, err := config.NewStore("")
	require.NoError(t, err)

	source := &fakeCaptureSource{rgba: make([]byte, 240*240*4), width: 240, height: 240}
	open := func(portName string, baud int) (SerialPort, error) {
		return nil, assertErr
	}

	h := NewHostUSBLoop(open, cfg, source, WithUSBReconnectBackoff(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = h.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, Disconnected, h.State())
}
