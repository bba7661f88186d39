//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/sot"
)

// VideoSource is unavailable without gocv
type VideoSource struct{}

// OpenVideoSource returns ErrDisabled without gocv
func OpenVideoSource(opts SourceOptions, logger *logrus.Logger) (*VideoSource, error) {
	return nil, ErrDisabled
}

// Next returns ErrDisabled without gocv
func (vs *VideoSource) Next(ctx context.Context) (sot.Frame, error) {
	return sot.Frame{}, ErrDisabled
}

// Close is no-op without gocv
func (vs *VideoSource) Close() error {
	return nil
}

// TrackerModel is unavailable without gocv
type TrackerModel struct{}

// NewTrackerModel returns ErrDisabled without gocv
func NewTrackerModel() (*TrackerModel, error) {
	return nil, ErrDisabled
}

// Init returns ErrDisabled without gocv
func (m *TrackerModel) Init(ctx context.Context, frame sot.Frame, state sot.TrackState) error {
	return ErrDisabled
}

// Advance returns ErrDisabled without gocv
func (m *TrackerModel) Advance(ctx context.Context, prev sot.TrackState, frame sot.Frame) (sot.TrackState, error) {
	return sot.TrackState{}, ErrDisabled
}

// Reanchors is always 0 without gocv
func (m *TrackerModel) Reanchors() int {
	return 0
}

// Close is no-op without gocv
func (m *TrackerModel) Close() error {
	return nil
}

// CleanMask returns ErrDisabled without gocv
func CleanMask(mask *sot.Mask, minArea float64) (*sot.Mask, error) {
	return nil, ErrDisabled
}

// BlobBounds returns ErrDisabled without gocv
func BlobBounds(mask *sot.Mask, minArea float64) (image.Rectangle, error) {
	return image.Rectangle{}, ErrDisabled
}
