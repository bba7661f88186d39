package actuator

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/LdDl/sot-go/sot"
)

type fakePort struct {
	io.Reader
	written bytes.Buffer
	closed  int
}

func (p *fakePort) Write(data []byte) (int, error) {
	return p.written.Write(data)
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func TestSerialOptionsNormalize(t *testing.T) {
	opts, err := SerialOptions{}.Normalize()
	require.NoError(t, err)
	require.Equal(t, SerialOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"}, opts)

	opts, err = SerialOptions{BaudRate: 9600, Parity: "even", StopBits: 2}.Normalize()
	require.NoError(t, err)
	require.Equal(t, "E", opts.Parity)

	_, err = SerialOptions{DataBits: 9}.Normalize()
	require.Error(t, err)
	_, err = SerialOptions{StopBits: 3}.Normalize()
	require.Error(t, err)
	_, err = SerialOptions{Parity: "mark"}.Normalize()
	require.Error(t, err)
}

func TestSerialOptionsMode(t *testing.T) {
	mode, err := SerialOptions{BaudRate: 9600, StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	require.Equal(t, 9600, mode.BaudRate)
	require.Equal(t, 8, mode.DataBits)
	require.Equal(t, serial.TwoStopBits, mode.StopBits)
	require.Equal(t, serial.OddParity, mode.Parity)
}

func TestSerialPeerBridge(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader("OK\n")}
	peer := NewSerialPeer(port)
	bridge := NewBridge(peer, time.Second, nil)

	status, err := bridge.Send(&sot.Box{X: 5, Y: 6, W: 7, H: 8})
	require.NoError(t, err)
	require.Equal(t, "OK", status)
	require.Equal(t, "5 6 7 8\n", port.written.String())

	require.NoError(t, bridge.Shutdown())
	require.Equal(t, "5 6 7 8\n"+StopCommand, port.written.String())
	require.Equal(t, 1, port.closed)
	require.False(t, peer.Alive())

	_, err = peer.Write([]byte(StopCommand))
	require.True(t, errors.Is(err, ErrActuatorUnavailable))
	require.NoError(t, peer.Terminate(0))
	require.Equal(t, 1, port.closed)
}
