//go:build gocv
// +build gocv

package vision

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/LdDl/sot-go/sot"
)

// TrackerModel is local appearance model backed by OpenCV MIL tracker.
// MIL reports only found / not found, so score is 1 or 0.
// When caller hands back a state other than the last reported one (WEAK frame froze it), tracker is re-anchored there.
type TrackerModel struct {
	mu      sync.Mutex
	tracker gocv.Tracker
	// Box the tracker was anchored on or last reported
	last      image.Rectangle
	reanchors int
}

// NewTrackerModel creates new MIL based model
func NewTrackerModel() (*TrackerModel, error) {
	return &TrackerModel{}, nil
}

// Init (re)creates tracker on seed frame
func (m *TrackerModel) Init(ctx context.Context, frame sot.Frame, state sot.TrackState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return errors.Wrap(err, "Can't convert seed frame")
	}
	defer mat.Close()
	if !m.anchor(mat, state.Box().ImageRect()) {
		return errors.Wrap(sot.ErrInference, "MIL tracker rejected seed box")
	}
	return nil
}

func (m *TrackerModel) anchor(mat gocv.Mat, box image.Rectangle) bool {
	if m.tracker != nil {
		m.tracker.Close()
	}
	m.tracker = gocv.NewTrackerMIL()
	m.last = box
	return m.tracker.Init(mat, box)
}

// Advance updates tracker with the next frame
func (m *TrackerModel) Advance(ctx context.Context, prev sot.TrackState, frame sot.Frame) (sot.TrackState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracker == nil {
		return sot.TrackState{}, errors.Wrap(sot.ErrInference, "MIL tracker is not initialized")
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return sot.TrackState{}, errors.Wrapf(sot.ErrInference, "frame %d: %v", frame.Seq, err)
	}
	defer mat.Close()
	if prevBox := prev.Box().ImageRect(); prevBox != m.last {
		m.reanchors++
		if !m.anchor(mat, prevBox) {
			return sot.TrackState{}, errors.Wrapf(sot.ErrInference, "frame %d: MIL tracker rejected box %v", frame.Seq, prevBox)
		}
	}
	rect, found := m.tracker.Update(mat)
	if !found || rect.Empty() {
		// Geometry of a failed update is meaningless; caller will freeze on its last good state anyway
		next := prev
		next.Score = 0
		m.last = prev.Box().ImageRect()
		return next, nil
	}
	next := sot.TrackState{
		Center: sot.NewRectFrom(rect).Center(),
		Size:   sot.NewSize(float64(rect.Dx()), float64(rect.Dy())),
		Score:  1,
	}
	m.last = next.Box().ImageRect()
	return next, nil
}

// Reanchors returns how many times tracker was restarted from a caller supplied state
func (m *TrackerModel) Reanchors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reanchors
}

// Close releases tracker
func (m *TrackerModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracker == nil {
		return nil
	}
	err := m.tracker.Close()
	m.tracker = nil
	return err
}
