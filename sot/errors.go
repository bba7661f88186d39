package sot

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned when seed frame or mask is absent or malformed
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyMask is returned when seed mask has no foreground pixels
	ErrEmptyMask = errors.New("mask is empty")
	// ErrNotInitialized is returned when tracking is advanced before seeding
	ErrNotInitialized = errors.New("tracker is not initialized: seed it first")
	// ErrInference is returned by appearance model implementations on per-frame failure
	ErrInference = errors.New("inference failed")
	// ErrInvalidPrompt is returned when segmentation prompt does not hold exactly one prompt kind
	ErrInvalidPrompt = errors.New("invalid prompt: exactly one of points, box, reference image or text is required")
	// ErrExhausted is returned when frame source has no more frames
	ErrExhausted = errors.New("frame source exhausted")
)

// InferenceError reports that appearance model failed on too many consecutive frames.
// It matches ErrInference with errors.Is and unwraps to the last model error.
type InferenceError struct {
	// Sequence number of the last failed frame
	Seq int
	// Number of consecutive failures
	Failures int
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %d consecutive failures, last at frame %d: %v", ErrInference.Error(), e.Failures, e.Seq, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}
