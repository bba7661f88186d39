// Package vision binds OpenCV (via gocv) to the tracking core: video capture, a local appearance model and mask post-processing.
// Real implementations need the "gocv" build tag; without it every constructor returns ErrDisabled.
package vision

import (
	"github.com/pkg/errors"
)

var (
	// ErrDisabled is returned when binary was built without gocv tag
	ErrDisabled = errors.New("gocv build tag is not enabled")
	// ErrOpenSource is returned when video source can't be opened
	ErrOpenSource = errors.New("can't open video source")
)

// SourceOptions describes video source
type SourceOptions struct {
	// Device index ("0") or file path / stream URL
	URI string
	// Frames are resized to Width x Height. Zero keeps original size
	Width  int
	Height int
}

// DefaultMinContourArea is minimum area of mask blob kept by CleanMask
const DefaultMinContourArea = 50
