package sot

import (
	"context"
	"image"
)

// Frame is a single video frame delivered by FrameSource
type Frame struct {
	// Sequence number assigned by the source, starting from 0
	Seq int
	// RGB pixel data
	Image image.Image
}

// Empty reports whether frame carries no pixel data
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Size returns frame width and height
func (f Frame) Size() (int, int) {
	if f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// FrameSource delivers video frames one by one.
// Next blocks until a frame is available and returns io.EOF when source is finished.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// AppearanceModel is the per-frame visual tracker.
// Advance receives previous state by value and returns a new state; implementations must not retain references into prev.
type AppearanceModel interface {
	Advance(ctx context.Context, prev TrackState, frame Frame) (TrackState, error)
}

// Initializer is implemented by appearance models which need the seed frame before the first Advance call
type Initializer interface {
	Init(ctx context.Context, frame Frame, state TrackState) error
}

// SegmentationOracle produces binary mask of the target for seeding
type SegmentationOracle interface {
	Segment(ctx context.Context, frame Frame, prompt Prompt) (*Mask, error)
}
