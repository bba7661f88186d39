package sot

import (
	"github.com/pkg/errors"
)

const (
	// DefaultMinSeedSize is the minimum width and height of the seed box in pixels
	DefaultMinSeedSize = 10
)

// ExtractSeed converts binary mask into initial track state and pixel box (x_min, y_min, w, h).
// Width and height are never smaller than minSize.
func ExtractSeed(frame Frame, mask *Mask, minSize int) (TrackState, Box, error) {
	if frame.Empty() || mask == nil {
		return TrackState{}, Box{}, errors.Wrap(ErrInvalidInput, "frame and mask are required")
	}
	frameW, frameH := frame.Size()
	if mask.Width != frameW || mask.Height != frameH || len(mask.Pix) != mask.Width*mask.Height {
		return TrackState{}, Box{}, errors.Wrapf(ErrInvalidInput, "mask %dx%d does not match frame %dx%d", mask.Width, mask.Height, frameW, frameH)
	}
	xMin, yMin, xMax, yMax, ok := mask.ForegroundBounds()
	if !ok {
		return TrackState{}, Box{}, ErrEmptyMask
	}

	w := maxInt(minSize, xMax-xMin)
	h := maxInt(minSize, yMax-yMin)

	state := TrackState{
		Center: Point{
			X: float64(xMin) + float64(w)/2.0,
			Y: float64(yMin) + float64(h)/2.0,
		},
		Size:  Size{Width: float64(w), Height: float64(h)},
		Score: 1.0,
	}
	return state, Box{X: xMin, Y: yMin, W: w, H: h}, nil
}
