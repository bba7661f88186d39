package sot

import (
	"context"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// KalmanModel wraps appearance model and smooths its center/size estimate with 8-D Kalman filter.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
// Confidence score is passed through untouched.
type KalmanModel struct {
	inner AppearanceModel
	dt    float64
	// Estimates with raw score below this value only advance the filter (predict) and are not used as measurement
	minScore float64
	tracker  *kalman_filter.KalmanBBox
	// Last returned estimate. Any other prev means caller replaced the state and filter restarts from it
	last TrackState
}

// NewKalmanModelWithTime creates Kalman smoothing decorator with specified time step and measurement score gate.
func NewKalmanModelWithTime(inner AppearanceModel, dt, minScore float64) *KalmanModel {
	return &KalmanModel{
		inner:    inner,
		dt:       dt,
		minScore: minScore,
	}
}

// NewKalmanModel creates Kalman smoothing decorator with default time step of 1.0
func NewKalmanModel(inner AppearanceModel, minScore float64) *KalmanModel {
	return NewKalmanModelWithTime(inner, 1.0, minScore)
}

func (m *KalmanModel) reset(state TrackState) {
	// Kalman filter props. No control input: a single target has no known acceleration
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	m.tracker = kalman_filter.NewKalmanBBox(
		m.dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(state.Center.X, state.Center.Y, state.Size.Width, state.Size.Height),
	)
	m.last = state
}

// Init resets filter to the seed state and initializes wrapped model if it needs that
func (m *KalmanModel) Init(ctx context.Context, frame Frame, state TrackState) error {
	m.reset(state)
	if initializer, ok := m.inner.(Initializer); ok {
		return initializer.Init(ctx, frame, state)
	}
	return nil
}

// Advance runs wrapped model and returns filtered estimate
func (m *KalmanModel) Advance(ctx context.Context, prev TrackState, frame Frame) (TrackState, error) {
	next, err := m.inner.Advance(ctx, prev, frame)
	if err != nil {
		return TrackState{}, err
	}
	if m.tracker == nil || !sameGeometry(prev, m.last) {
		m.reset(prev)
	}

	m.tracker.Predict()
	if next.Score >= m.minScore {
		err = m.tracker.Update(next.Center.X, next.Center.Y, next.Size.Width, next.Size.Height)
		if err != nil {
			return TrackState{}, errors.Wrap(err, "Can't update Kalman filter")
		}
	}

	cx, cy, w, h := m.tracker.GetState()
	filtered := TrackState{
		Center: Point{X: cx, Y: cy},
		Size:   Size{Width: w, Height: h},
		Score:  next.Score,
	}
	// Size velocity can drive width/height through zero on long prediction-only runs
	if w <= 0 || h <= 0 {
		filtered.Size = next.Size
	}
	m.last = filtered
	return filtered, nil
}

func sameGeometry(a, b TrackState) bool {
	return a.Center == b.Center && a.Size == b.Size
}

// GetVelocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (m *KalmanModel) GetVelocity() (float64, float64, float64, float64) {
	if m.tracker == nil {
		return 0, 0, 0, 0
	}
	return m.tracker.GetVelocity()
}

// Close closes wrapped model if it holds resources
func (m *KalmanModel) Close() error {
	if closer, ok := m.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
