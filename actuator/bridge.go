package actuator

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/LdDl/sot-go/sot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrActuatorUnavailable is returned when peer is not running or its pipe is closed
	ErrActuatorUnavailable = errors.New("actuator is unavailable")
)

const (
	// DefaultKillTimeout is how long Shutdown waits for peer to exit before killing it
	DefaultKillTimeout = 2 * time.Second
)

// Peer is the controller end of the protocol
type Peer interface {
	io.ReadWriter
	// Alive reports whether peer can still accept commands
	Alive() bool
	// Terminate stops peer, forcing it after timeout if it can't be stopped gracefully
	Terminate(timeout time.Duration) error
}

// Bridge serializes boxes to peer and reads status tokens back.
// It is not safe for concurrent use.
type Bridge struct {
	peer        Peer
	reader      *bufio.Reader
	killTimeout time.Duration
	logger      *logrus.Logger
	sent        int
	shutdown    bool
	notices     []string
}

// NewBridge creates bridge over peer. Nil logger discards output.
func NewBridge(peer Peer, killTimeout time.Duration, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if killTimeout <= 0 {
		killTimeout = DefaultKillTimeout
	}
	return &Bridge{
		peer:        peer,
		reader:      bufio.NewReader(peer),
		killTimeout: killTimeout,
		logger:      logger,
	}
}

// Send writes box (nil means "no target") and returns trimmed status line of the peer
func (b *Bridge) Send(box *sot.Box) (string, error) {
	if b.shutdown || !b.peer.Alive() {
		return "", ErrActuatorUnavailable
	}
	line := FormatCommand(box)
	if _, err := io.WriteString(b.peer, line); err != nil {
		return "", errors.Wrapf(ErrActuatorUnavailable, "write %q: %v", strings.TrimSpace(line), err)
	}
	b.sent++

	status, err := b.readStatus()
	if err != nil {
		return "", err
	}
	b.logger.WithFields(logrus.Fields{"command": strings.TrimSpace(line), "status": status}).Debug("Actuator command sent")
	return status, nil
}

// readStatus returns the next status line. Notice lines ("[INIT] ...", "[WARN] ...") are logged and skipped.
func (b *Bridge) readStatus() (string, error) {
	for {
		raw, err := b.reader.ReadString('\n')
		if err != nil && (err != io.EOF || raw == "") {
			return "", errors.Wrapf(ErrActuatorUnavailable, "read status: %v", err)
		}
		status := strings.TrimSpace(raw)
		if !isNotice(status) {
			return status, nil
		}
		b.notices = append(b.notices, status)
		b.logger.WithField("notice", status).Info("Actuator notice")
		if err != nil {
			return "", errors.Wrap(ErrActuatorUnavailable, "read status: peer closed after notice")
		}
	}
}

func isNotice(line string) bool {
	return strings.HasPrefix(line, "[")
}

// Notices returns notice lines received from peer so far
func (b *Bridge) Notices() []string {
	notices := make([]string, len(b.notices))
	copy(notices, b.notices)
	return notices
}

// Stop sends "no target" command
func (b *Bridge) Stop() (string, error) {
	return b.Send(nil)
}

// Sent returns number of commands written to peer
func (b *Bridge) Sent() int {
	return b.sent
}

// Shutdown sends stop sentinel (best effort) and terminates peer. It is safe to call Shutdown multiple times.
func (b *Bridge) Shutdown() error {
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	if b.peer.Alive() {
		// No status read here: peer may be exiting already
		if _, err := io.WriteString(b.peer, StopCommand); err != nil {
			b.logger.WithError(err).Warn("Can't send stop command to actuator")
		}
	}
	err := b.peer.Terminate(b.killTimeout)
	if err != nil {
		return errors.Wrap(err, "Can't terminate actuator")
	}
	b.logger.Info("Actuator stopped")
	return nil
}
