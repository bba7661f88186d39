package runner

import (
	"sync"
	"time"

	"github.com/LdDl/sot-go/sot"
)

// Snapshot is a point-in-time view of a running session
type Snapshot struct {
	Session     string    `json:"session"`
	Running     bool      `json:"running"`
	Frames      int       `json:"frames"`
	LastSeq     int       `json:"last_seq"`
	State       string    `json:"state"`
	Score       float64   `json:"score"`
	RawScore    float64   `json:"raw_score"`
	LossCounter int       `json:"loss_counter"`
	Holding     bool      `json:"holding"`
	Box         [4]int    `json:"box"`
	Command     string    `json:"command"`
	Actuator    string    `json:"actuator_status,omitempty"`
	ActuatorErr string    `json:"actuator_error,omitempty"`
	Counts      Counts    `json:"counts"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Counts holds per-state frame counters
type Counts struct {
	Confident int `json:"confident"`
	Weak      int `json:"weak"`
	Lost      int `json:"lost"`
	// Number of transitions into LOST
	LostEvents int `json:"lost_events"`
	// Absorbed appearance model failures
	InferenceErrors int `json:"inference_errors"`
}

// Status is a concurrency safe holder of the latest Snapshot. Session writes, status API reads.
type Status struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// NewStatus creates empty status
func NewStatus() *Status {
	return &Status{now: time.Now}
}

// Snapshot returns copy of the current status
func (st *Status) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshot
}

func (st *Status) start(session string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	now := st.now()
	st.snapshot = Snapshot{
		Session:   session,
		Running:   true,
		LastSeq:   -1,
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (st *Status) observe(result sot.Result, command string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := &st.snapshot
	if result.State == sot.StateLost && snap.State != sot.StateLost.String() {
		snap.Counts.LostEvents++
	}
	switch result.State {
	case sot.StateConfident:
		snap.Counts.Confident++
	case sot.StateWeak:
		snap.Counts.Weak++
	case sot.StateLost:
		snap.Counts.Lost++
	}
	if result.InferenceErr != nil {
		snap.Counts.InferenceErrors++
	}
	snap.Frames++
	snap.LastSeq = result.Seq
	snap.State = result.State.String()
	snap.Score = result.Score
	snap.RawScore = result.RawScore
	snap.LossCounter = result.LossCounter
	snap.Holding = result.Holding
	snap.Box = [4]int{result.Box.X, result.Box.Y, result.Box.W, result.Box.H}
	snap.Command = command
	snap.UpdatedAt = st.now()
}

func (st *Status) actuator(reply string, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.snapshot.Actuator = reply
	st.snapshot.ActuatorErr = ""
	if err != nil {
		st.snapshot.ActuatorErr = err.Error()
	}
}

func (st *Status) stop() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.snapshot.Running = false
	st.snapshot.UpdatedAt = st.now()
}
