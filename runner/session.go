// Package runner drives a seeded tracking stream and forwards every decision to an actuator.
package runner

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/actuator"
	"github.com/LdDl/sot-go/sot"
)

// Session couples box stream with actuator bridge. Both are released when Run returns.
type Session struct {
	stream *sot.Stream
	// nil when running without actuator
	bridge   *actuator.Bridge
	logger   *logrus.Logger
	status   *Status
	onResult func(sot.Result)
	// set after actuator became unavailable: further commands are dropped
	actuatorDown bool
}

// NewSession creates session. Bridge may be nil.
func NewSession(stream *sot.Stream, bridge *actuator.Bridge, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Session{
		stream: stream,
		bridge: bridge,
		logger: logger,
		status: NewStatus(),
	}
}

// OnResult registers hook called for every frame after actuator was driven
func (s *Session) OnResult(fn func(sot.Result)) {
	s.onResult = fn
}

// Status returns live session status
func (s *Session) Status() *Status {
	return s.status
}

// Run pulls results until frame source is exhausted, ctx is cancelled or tracking fails.
// Exhaustion is not an error. Actuator failures are logged and never stop tracking.
func (s *Session) Run(ctx context.Context) (err error) {
	sup := s.stream.Supervisor()
	if sup == nil || !sup.Initialized() {
		s.teardown()
		return sot.ErrNotInitialized
	}
	s.status.start(sup.SessionID().String())
	log := s.logger.WithField("session", sup.SessionID().String())
	log.Info("Session started")

	defer func() {
		closeErr := s.teardown()
		s.status.stop()
		if err == nil {
			err = closeErr
		}
		snap := s.status.Snapshot()
		log.WithFields(logrus.Fields{
			"frames":      snap.Frames,
			"lost_events": snap.Counts.LostEvents,
		}).Info("Session finished")
	}()

	for result, stepErr := range s.stream.All(ctx) {
		if stepErr != nil {
			if ctx.Err() != nil {
				log.Info("Session interrupted")
				return nil
			}
			return errors.Wrap(stepErr, "Tracking failed")
		}
		command := actuator.FormatCommand(result.Command())
		s.status.observe(result, strings.TrimSpace(command))
		s.drive(log, result)
		if s.onResult != nil {
			s.onResult(result)
		}
	}
	return nil
}

func (s *Session) drive(log *logrus.Entry, result sot.Result) {
	if s.bridge == nil || s.actuatorDown {
		return
	}
	reply, err := s.bridge.Send(result.Command())
	s.status.actuator(reply, err)
	if err == nil {
		log.WithFields(logrus.Fields{"frame": result.Seq, "reply": reply}).Debug("Actuator replied")
		return
	}
	if errors.Is(err, actuator.ErrActuatorUnavailable) {
		s.actuatorDown = true
		log.WithError(err).Error("Actuator is gone, continuing without it")
		return
	}
	log.WithError(err).WithField("frame", result.Seq).Warn("Actuator command failed")
}

// teardown stops actuator and closes stream. First error wins, the rest are logged.
func (s *Session) teardown() error {
	var first error
	if s.bridge != nil {
		if err := s.bridge.Shutdown(); err != nil {
			first = err
		}
	}
	if err := s.stream.Close(); err != nil {
		if first == nil {
			first = err
		} else {
			s.logger.WithError(err).Warn("Can't close stream")
		}
	}
	return first
}
