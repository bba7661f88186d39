package sot

import (
	"context"
	"io"
	"iter"

	"github.com/pkg/errors"
)

// Stream is a pull-driven bounding box sequence: every Next call reads exactly one frame and yields one Result.
// Stream is finite only when frame source ends. It can't be restarted: new session needs new seed and new stream.
type Stream struct {
	sup    *Supervisor
	source FrameSource
	// Mark LOST frames as "no target" so actuator gets stop command instead of held box
	stopOnLost bool
	done       bool
	closed     bool
}

// NewStream creates stream over frame source. Stream owns source and closes it in Close.
func NewStream(sup *Supervisor, source FrameSource, stopOnLost bool) *Stream {
	return &Stream{
		sup:        sup,
		source:     source,
		stopOnLost: stopOnLost,
	}
}

// Next advances stream by a single frame.
// Returns ErrNotInitialized before seeding and ErrExhausted once source has no more frames.
// A frame without image is a failed capture read and ends the stream the same way.
func (s *Stream) Next(ctx context.Context) (Result, error) {
	if s.sup == nil || !s.sup.Initialized() {
		return Result{}, ErrNotInitialized
	}
	if s.done || s.closed {
		return Result{}, ErrExhausted
	}
	frame, err := s.source.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return Result{}, ErrExhausted
		}
		return Result{}, errors.Wrap(err, "Can't read frame")
	}
	if frame.Empty() {
		s.done = true
		return Result{}, ErrExhausted
	}
	result, err := s.sup.Step(ctx, frame)
	if err != nil {
		return Result{}, err
	}
	if s.stopOnLost && result.Holding {
		result.NoTarget = true
	}
	return result, nil
}

// All returns stream as iterator. Iteration stops silently on exhaustion; any other error is yielded once and ends iteration.
func (s *Stream) All(ctx context.Context) iter.Seq2[Result, error] {
	return func(yield func(Result, error) bool) {
		for {
			result, err := s.Next(ctx)
			if errors.Is(err, ErrExhausted) {
				return
			}
			if !yield(result, err) || err != nil {
				return
			}
		}
	}
}

// Supervisor returns underlying supervisor
func (s *Stream) Supervisor() *Supervisor {
	return s.sup
}

// Close releases frame source. It is safe to call Close multiple times.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.source == nil {
		return nil
	}
	return errors.Wrap(s.source.Close(), "Can't close frame source")
}
