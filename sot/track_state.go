package sot

// TrackState is the appearance model estimate of the target for a single frame.
// It is a plain value: copying it gives an independent snapshot.
type TrackState struct {
	Center Point
	Size   Size
	// Raw confidence score of the appearance model in [0, 1]
	Score float64
}

// Rect returns sub-pixel target rectangle
func (state TrackState) Rect() Rectangle {
	return RectFromCenter(state.Center, state.Size)
}

// Box returns integer pixel box of the target (not clamped)
func (state TrackState) Box() Box {
	return state.Rect().ToBox()
}

// TrackingState is the per-frame classification of the supervisor
type TrackingState uint16

const (
	// StateConfident means smoothed confidence is at or above threshold
	StateConfident TrackingState = iota
	// StateWeak means smoothed confidence is below threshold; last confident estimate is reused
	StateWeak
	// StateLost means weak tracking lasted for too long; last box is held
	StateLost
)

func (s TrackingState) String() string {
	switch s {
	case StateConfident:
		return "CONFIDENT"
	case StateWeak:
		return "WEAK"
	case StateLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}
