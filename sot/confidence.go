package sot

// Smoother is an exponential moving average over raw confidence scores.
// The first observed score is taken as is.
type Smoother struct {
	// Weight of history. Default is 0.7
	alpha   float64
	value   float64
	started bool
}

// NewSmoother creates smoother. Alpha is clipped into [0, 1]
func NewSmoother(alpha float64) *Smoother {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &Smoother{
		alpha: alpha,
	}
}

// SmoothScore returns next smoothed value given previous one (ok == false if there is none) and new raw score
func SmoothScore(prev float64, ok bool, raw, alpha float64) float64 {
	if !ok {
		return raw
	}
	return alpha*prev + (1-alpha)*raw
}

// Observe feeds raw score and returns smoothed value
func (s *Smoother) Observe(raw float64) float64 {
	s.value = SmoothScore(s.value, s.started, raw, s.alpha)
	s.started = true
	return s.value
}

// Value returns current smoothed value; ok is false before the first observation
func (s *Smoother) Value() (float64, bool) {
	return s.value, s.started
}

// Reset forgets history
func (s *Smoother) Reset() {
	s.value = 0
	s.started = false
}
