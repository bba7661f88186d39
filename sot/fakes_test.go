package sot

import (
	"context"
	"image"
	"io"
)

// modelStep is a single scripted appearance model answer
type modelStep struct {
	state TrackState
	err   error
}

// scriptedModel replays steps; last step is repeated when script is over
type scriptedModel struct {
	steps     []modelStep
	calls     int
	prevs     []TrackState
	initCalls int
	initState TrackState
	initErr   error
}

func (m *scriptedModel) Advance(ctx context.Context, prev TrackState, frame Frame) (TrackState, error) {
	m.prevs = append(m.prevs, prev)
	idx := m.calls
	if idx >= len(m.steps) {
		idx = len(m.steps) - 1
	}
	m.calls++
	step := m.steps[idx]
	return step.state, step.err
}

func (m *scriptedModel) Init(ctx context.Context, frame Frame, state TrackState) error {
	m.initCalls++
	m.initState = state
	return m.initErr
}

// advanceOnly hides Init of the wrapped model
type advanceOnly struct {
	m *scriptedModel
}

func (a advanceOnly) Advance(ctx context.Context, prev TrackState, frame Frame) (TrackState, error) {
	return a.m.Advance(ctx, prev, frame)
}

func confident(cx, cy, w, h, score float64) modelStep {
	return modelStep{state: TrackState{Center: Point{X: cx, Y: cy}, Size: Size{Width: w, Height: h}, Score: score}}
}

func newTestFrame(seq, width, height int) Frame {
	return Frame{Seq: seq, Image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// seedMask returns mask with foreground rectangle (inclusive bounds)
func seedMask(width, height, xMin, yMin, xMax, yMax int) *Mask {
	mask := NewMask(width, height)
	mask.Fill(image.Rect(xMin, yMin, xMax+1, yMax+1))
	return mask
}

// sliceSource delivers count blank frames and then io.EOF
type sliceSource struct {
	count  int
	width  int
	height int
	served int
	closed int
	err    error
	// When positive, frame with this index comes without image
	emptyAt int
}

func (s *sliceSource) Next(ctx context.Context) (Frame, error) {
	if s.err != nil {
		return Frame{}, s.err
	}
	if s.served >= s.count {
		return Frame{}, io.EOF
	}
	frame := newTestFrame(s.served, s.width, s.height)
	if s.emptyAt > 0 && s.served == s.emptyAt {
		frame = Frame{Seq: s.served}
	}
	s.served++
	return frame, nil
}

func (s *sliceSource) Close() error {
	s.closed++
	return nil
}

type fakeOracle struct {
	mask    *Mask
	err     error
	prompts []Prompt
}

func (o *fakeOracle) Segment(ctx context.Context, frame Frame, prompt Prompt) (*Mask, error) {
	o.prompts = append(o.prompts, prompt)
	return o.mask, o.err
}
