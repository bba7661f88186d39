package actuator

import (
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialOptions describes serial connection to a controller board
type SerialOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

// Normalize validates the options and applies defaults for any unset values.
func (o SerialOptions) Normalize() (SerialOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, errors.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, errors.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, errors.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity
	return opts, nil
}

// SerialMode converts options into go.bug.st/serial mode
func (o SerialOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// SerialPeer talks to a controller board over serial port
type SerialPeer struct {
	port   io.ReadWriteCloser
	closed atomic.Bool
}

// OpenSerial opens serial port at path
func OpenSerial(path string, opts SerialOptions) (*SerialPeer, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(ErrActuatorUnavailable, "open %s: %v", path, err)
	}
	return NewSerialPeer(port), nil
}

// NewSerialPeer wraps already opened port
func NewSerialPeer(port io.ReadWriteCloser) *SerialPeer {
	return &SerialPeer{port: port}
}

// Alive reports whether port is still open
func (p *SerialPeer) Alive() bool {
	return !p.closed.Load()
}

func (p *SerialPeer) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrActuatorUnavailable
	}
	return p.port.Write(data)
}

func (p *SerialPeer) Read(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, io.EOF
	}
	return p.port.Read(data)
}

// Terminate closes port. Serial devices have no process to wait for, so timeout is unused.
func (p *SerialPeer) Terminate(timeout time.Duration) error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.port.Close()
}
