package actuator

import (
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ProcessPeer runs controller as a child process talking over its stdin/stdout
type ProcessPeer struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *io.PipeWriter
	done   chan struct{}
	// Valid after done is closed
	waitErr error
	logger  *logrus.Logger
}

// StartProcess starts controller executable. Its stderr is forwarded to logger at warn level.
func StartProcess(path string, args []string, logger *logrus.Logger) (*ProcessPeer, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "Can't create stdin pipe")
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, errors.Wrap(err, "Can't create stdout pipe")
	}

	stderr := logger.WithField("actuator", path).WriterLevel(logrus.WarnLevel)
	cmd := exec.Command(path, args...)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderr.Close()
		return nil, errors.Wrapf(ErrActuatorUnavailable, "start %s: %v", path, err)
	}
	// Child owns these ends now
	stdinR.Close()
	stdoutW.Close()

	peer := &ProcessPeer{
		cmd:    cmd,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderr,
		done:   make(chan struct{}),
		logger: logger,
	}
	go peer.wait()
	logger.WithFields(logrus.Fields{"path": path, "pid": cmd.Process.Pid}).Info("Actuator controller started")
	return peer, nil
}

func (p *ProcessPeer) wait() {
	p.waitErr = p.cmd.Wait()
	p.stderr.Close()
	close(p.done)
	if p.waitErr != nil {
		p.logger.WithError(p.waitErr).Warn("Actuator controller exited")
	} else {
		p.logger.Info("Actuator controller exited")
	}
}

// Alive reports whether child process is still running
func (p *ProcessPeer) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Write writes to child stdin
func (p *ProcessPeer) Write(data []byte) (int, error) {
	if !p.Alive() {
		return 0, ErrActuatorUnavailable
	}
	return p.stdin.Write(data)
}

// Read reads from child stdout
func (p *ProcessPeer) Read(data []byte) (int, error) {
	return p.stdout.Read(data)
}

// Done is closed once child process exits
func (p *ProcessPeer) Done() <-chan struct{} {
	return p.done
}

// Terminate closes child stdin and sends SIGTERM; child is killed if it is still running after timeout
func (p *ProcessPeer) Terminate(timeout time.Duration) error {
	p.stdin.Close()
	defer p.stdout.Close()
	if !p.Alive() {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.WithError(err).Warn("Can't signal actuator controller")
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}
	p.logger.WithField("timeout", timeout).Warn("Actuator controller did not exit in time, killing it")
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrap(err, "Can't kill actuator controller")
	}
	<-p.done
	return nil
}
