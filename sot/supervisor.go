package sot

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Params holds supervisor tuning parameters
type Params struct {
	// EMA weight of history. Default is 0.7
	Alpha float64
	// Smoothed confidence below this value makes frame WEAK. Default is 0.35
	ConfThreshold float64
	// Number of consecutive WEAK frames which makes target LOST. Default is 15
	MaxLost int
	// Minimum seed box width/height in pixels. Default is 10
	MinSeedSize int
	// Consecutive appearance model failures tolerated before Step returns an error. 0 means unlimited. Default is 30
	MaxInferenceErrors int
	// Max length of reported centers history. Default is 150
	MaxTrailLen int
}

// DefaultParams returns default supervisor parameters
func DefaultParams() Params {
	return Params{
		Alpha:              0.7,
		ConfThreshold:      0.35,
		MaxLost:            15,
		MinSeedSize:        DefaultMinSeedSize,
		MaxInferenceErrors: 30,
		MaxTrailLen:        150,
	}
}

// Validate checks parameters ranges
func (p Params) Validate() error {
	if p.Alpha < 0 || p.Alpha > 1 {
		return errors.Errorf("alpha must be in [0, 1], got %f", p.Alpha)
	}
	if p.ConfThreshold < 0 || p.ConfThreshold > 1 {
		return errors.Errorf("confidence threshold must be in [0, 1], got %f", p.ConfThreshold)
	}
	if p.MaxLost < 1 {
		return errors.Errorf("max lost must be positive, got %d", p.MaxLost)
	}
	if p.MinSeedSize < 0 {
		return errors.Errorf("min seed size must not be negative, got %d", p.MinSeedSize)
	}
	if p.MaxInferenceErrors < 0 {
		return errors.Errorf("max inference errors must not be negative, got %d", p.MaxInferenceErrors)
	}
	return nil
}

// Result is the supervisor decision for a single frame
type Result struct {
	// Frame sequence number
	Seq int
	// Reported box, clamped to the frame
	Box Box
	// Frame classification
	State TrackingState
	// Smoothed confidence
	Score float64
	// Raw confidence of the appearance model (0 when inference failed)
	RawScore float64
	// Loss counter after this frame
	LossCounter int
	// True when the box is held because target is LOST
	Holding bool
	// True when actuator should be stopped instead of driven to Box
	NoTarget bool
	// IoU of Box with previously reported box
	IoU float64
	// Distance between centers of Box and previously reported box
	Shift float64
	// Absorbed appearance model failure for this frame, if any
	InferenceErr error
}

// Command returns box to drive actuator to or nil when there is no target
func (r Result) Command() *Box {
	if r.NoTarget {
		return nil
	}
	box := r.Box
	return &box
}

// Supervisor turns noisy appearance model output into a stable bounding box stream.
// It is not safe for concurrent use: one goroutine owns it for a whole session.
type Supervisor struct {
	model  AppearanceModel
	params Params
	logger *logrus.Logger

	sessionID   uuid.UUID
	initialized bool
	smoother    *Smoother
	// Current state. Replaced wholesale on every frame
	current TrackState
	// Copy of current state taken on the most recent CONFIDENT frame
	lastGood        TrackState
	lossCounter     int
	inferenceErrors int
	state           TrackingState
	held            Box
	lastBox         Box
	hasLastBox      bool
	trail           []Point
}

// NewSupervisorDefault creates supervisor with default parameters and no logging
func NewSupervisorDefault(model AppearanceModel) *Supervisor {
	sup, _ := NewSupervisor(model, DefaultParams(), nil)
	return sup
}

// NewSupervisor creates new instance of Supervisor. Nil logger discards output.
func NewSupervisor(model AppearanceModel, params Params, logger *logrus.Logger) (*Supervisor, error) {
	if model == nil {
		return nil, errors.Wrap(ErrInvalidInput, "appearance model is required")
	}
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid supervisor params")
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Supervisor{
		model:    model,
		params:   params,
		logger:   logger,
		smoother: NewSmoother(params.Alpha),
	}, nil
}

// Seed starts new tracking session from segmentation mask. Returns seed box for display.
// Any previous session state is dropped.
func (sup *Supervisor) Seed(ctx context.Context, frame Frame, mask *Mask) (Box, error) {
	state, box, err := ExtractSeed(frame, mask, sup.params.MinSeedSize)
	if err != nil {
		return Box{}, err
	}
	if initializer, ok := sup.model.(Initializer); ok {
		err = initializer.Init(ctx, frame, state)
		if err != nil {
			return Box{}, errors.Wrap(err, "Can't initialize appearance model")
		}
	}

	sup.sessionID = uuid.New()
	sup.current = state
	sup.lastGood = state
	sup.smoother.Reset()
	sup.lossCounter = 0
	sup.inferenceErrors = 0
	sup.state = StateConfident
	sup.held = Box{}
	sup.lastBox = box
	sup.hasLastBox = true
	sup.trail = make([]Point, 0, sup.params.MaxTrailLen)
	sup.pushTrail(state.Center)
	sup.initialized = true

	sup.log().WithField("box", box.String()).Info("Tracker initialized")
	return box, nil
}

// SeedWithOracle segments target on frame using prompt and seeds session with resulting mask
func (sup *Supervisor) SeedWithOracle(ctx context.Context, oracle SegmentationOracle, frame Frame, prompt Prompt) (Box, error) {
	kind, err := prompt.Kind()
	if err != nil {
		return Box{}, err
	}
	if oracle == nil {
		return Box{}, errors.Wrap(ErrInvalidInput, "segmentation oracle is required")
	}
	mask, err := oracle.Segment(ctx, frame, prompt)
	if err != nil {
		return Box{}, errors.Wrapf(err, "Can't segment target with %s prompt", kind)
	}
	return sup.Seed(ctx, frame, mask)
}

// Step runs appearance model on frame and classifies the result.
// Ordinary tracking noise and isolated inference failures never produce an error: they degrade to frozen or held boxes.
func (sup *Supervisor) Step(ctx context.Context, frame Frame) (Result, error) {
	if !sup.initialized {
		return Result{}, ErrNotInitialized
	}
	if frame.Empty() {
		return Result{}, errors.Wrapf(ErrInvalidInput, "frame %d is empty", frame.Seq)
	}

	next, inferErr := sup.model.Advance(ctx, sup.current, frame)
	if inferErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, errors.Wrap(ctxErr, "tracking step interrupted")
		}
		sup.inferenceErrors++
		if sup.params.MaxInferenceErrors > 0 && sup.inferenceErrors > sup.params.MaxInferenceErrors {
			return Result{}, &InferenceError{Seq: frame.Seq, Failures: sup.inferenceErrors, Err: inferErr}
		}
		sup.log().WithError(inferErr).WithField("frame", frame.Seq).Warn("Appearance model failed, treating frame as weak")
		next = TrackState{}
	} else {
		sup.inferenceErrors = 0
	}

	score := sup.smoother.Observe(next.Score)
	state := StateConfident
	if inferErr != nil || score < sup.params.ConfThreshold {
		state = StateWeak
		sup.lossCounter++
		// Neither scale nor position of the estimate can be trusted: whole state comes from the last confident frame
		sup.current = sup.lastGood
		if sup.lossCounter >= sup.params.MaxLost {
			state = StateLost
			sup.lossCounter = sup.params.MaxLost
		}
	} else {
		sup.lossCounter = 0
		sup.current = next
	}

	frameW, frameH := frame.Size()
	box := ClampBox(sup.current.Box(), frameW, frameH)

	switch state {
	case StateConfident:
		// Snapshot is pre-clamp oracle output
		sup.lastGood = sup.current
		sup.log().WithFields(logrus.Fields{"frame": frame.Seq, "score": score}).Debug("Confident tracking")
	case StateWeak:
		sup.log().WithFields(logrus.Fields{"frame": frame.Seq, "score": score, "lost": sup.lossCounter}).Warn("Weak tracking")
	case StateLost:
		if sup.state != StateLost {
			sup.held = box
			sup.log().WithFields(logrus.Fields{"frame": frame.Seq, "box": box.String()}).Error("Target LOST, holding last known box")
		}
		box = sup.held
	}
	sup.state = state

	result := Result{
		Seq:          frame.Seq,
		Box:          box,
		State:        state,
		Score:        score,
		RawScore:     next.Score,
		LossCounter:  sup.lossCounter,
		Holding:      state == StateLost,
		InferenceErr: inferErr,
	}
	if sup.hasLastBox {
		result.IoU = IoU(sup.lastBox.Rect(), box.Rect())
		result.Shift = euclideanDistance(sup.lastBox.Rect().Center(), box.Rect().Center())
	}
	sup.lastBox = box
	sup.hasLastBox = true
	sup.pushTrail(box.Rect().Center())
	return result, nil
}

func (sup *Supervisor) pushTrail(center Point) {
	if sup.params.MaxTrailLen <= 0 {
		return
	}
	sup.trail = append(sup.trail, center)
	if len(sup.trail) > sup.params.MaxTrailLen {
		sup.trail = sup.trail[1:]
	}
}

func (sup *Supervisor) log() *logrus.Entry {
	return sup.logger.WithField("session", sup.sessionID.String())
}

// Initialized reports whether session was seeded
func (sup *Supervisor) Initialized() bool {
	return sup.initialized
}

// SessionID returns identifier of the current session (uuid.Nil before seeding)
func (sup *Supervisor) SessionID() uuid.UUID {
	return sup.sessionID
}

// Params returns supervisor parameters
func (sup *Supervisor) Params() Params {
	return sup.params
}

// State returns classification of the last frame
func (sup *Supervisor) State() TrackingState {
	return sup.state
}

// LossCounter returns current loss counter
func (sup *Supervisor) LossCounter() int {
	return sup.lossCounter
}

// Current returns copy of the current track state
func (sup *Supervisor) Current() TrackState {
	return sup.current
}

// LastGood returns copy of the last confident track state
func (sup *Supervisor) LastGood() TrackState {
	return sup.lastGood
}

// Smoothed returns smoothed confidence; ok is false before the first frame
func (sup *Supervisor) Smoothed() (float64, bool) {
	return sup.smoother.Value()
}

// Trail returns copy of recent reported centers (oldest first)
func (sup *Supervisor) Trail() []Point {
	trail := make([]Point, len(sup.trail))
	copy(trail, sup.trail)
	return trail
}
