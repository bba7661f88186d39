package runner

import (
	"bytes"
	"context"
	"image"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sot-go/actuator"
	"github.com/LdDl/sot-go/sot"
)

// driftModel moves target 5px right per frame; raw score is 0.9 until zeroFrom, 0 afterwards
type driftModel struct {
	zeroFrom int
}

func (m *driftModel) Advance(ctx context.Context, prev sot.TrackState, frame sot.Frame) (sot.TrackState, error) {
	score := 0.9
	if frame.Seq >= m.zeroFrom {
		score = 0
	}
	return sot.TrackState{
		Center: sot.Point{X: float64(150 + 5*frame.Seq), Y: 150},
		Size:   sot.Size{Width: 40, Height: 40},
		Score:  score,
	}, nil
}

type frameSource struct {
	frames []sot.Frame
	pos    int
	closed int
	// cancel is called before returning frame with this Seq
	cancelAt int
	cancel   context.CancelFunc
}

func newFrameSource(n int) *frameSource {
	src := &frameSource{cancelAt: -1}
	for i := 1; i <= n; i++ {
		src.frames = append(src.frames, sot.Frame{Seq: i, Image: image.NewRGBA(image.Rect(0, 0, 256, 256))})
	}
	return src
}

func (src *frameSource) Next(ctx context.Context) (sot.Frame, error) {
	if src.pos >= len(src.frames) {
		return sot.Frame{}, io.EOF
	}
	frame := src.frames[src.pos]
	if frame.Seq == src.cancelAt {
		src.cancel()
	}
	if err := ctx.Err(); err != nil {
		return sot.Frame{}, err
	}
	src.pos++
	return frame, nil
}

func (src *frameSource) Close() error {
	src.closed++
	return nil
}

type echoPeer struct {
	written    bytes.Buffer
	replies    *strings.Reader
	dead       bool
	terminated int
}

func (p *echoPeer) Write(data []byte) (int, error) {
	if p.dead {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(data)
}

func (p *echoPeer) Read(data []byte) (int, error) {
	return p.replies.Read(data)
}

func (p *echoPeer) Alive() bool {
	return !p.dead
}

func (p *echoPeer) Terminate(timeout time.Duration) error {
	p.terminated++
	p.dead = true
	return nil
}

func seededStream(t *testing.T, model sot.AppearanceModel, source sot.FrameSource, stopOnLost bool) *sot.Stream {
	t.Helper()
	params := sot.DefaultParams()
	params.MaxLost = 2
	sup, err := sot.NewSupervisor(model, params, nil)
	require.NoError(t, err)
	seedFrame := sot.Frame{Seq: 0, Image: image.NewRGBA(image.Rect(0, 0, 256, 256))}
	mask := sot.NewMask(256, 256)
	mask.Fill(image.Rect(130, 130, 170, 170))
	_, err = sup.Seed(context.Background(), seedFrame, mask)
	require.NoError(t, err)
	return sot.NewStream(sup, source, stopOnLost)
}

func TestSessionRun(t *testing.T) {
	source := newFrameSource(7)
	stream := seededStream(t, &driftModel{zeroFrom: 4}, source, true)
	peer := &echoPeer{replies: strings.NewReader(strings.Repeat("OK\n", 7))}
	session := NewSession(stream, actuator.NewBridge(peer, time.Second, nil), nil)

	var states []sot.TrackingState
	session.OnResult(func(result sot.Result) {
		states = append(states, result.State)
	})
	require.NoError(t, session.Run(context.Background()))

	require.Equal(t, []sot.TrackingState{
		sot.StateConfident, sot.StateConfident, sot.StateConfident, sot.StateConfident, sot.StateConfident,
		sot.StateWeak, sot.StateLost,
	}, states)

	expectedCommands := []string{
		"135 130 40 40", "140 130 40 40", "145 130 40 40", "150 130 40 40", "155 130 40 40",
		// WEAK frame repeats last confident box
		"155 130 40 40",
		// LOST with stop-on-lost
		"0 0 0 0",
		// Shutdown sentinel
		"0 0 0 0",
	}
	require.Equal(t, strings.Join(expectedCommands, "\n")+"\n", peer.written.String())
	require.Equal(t, 1, peer.terminated)
	require.Equal(t, 1, source.closed)

	expected := Snapshot{
		Session:     stream.Supervisor().SessionID().String(),
		Running:     false,
		Frames:      7,
		LastSeq:     7,
		State:       "LOST",
		Score:       0.9 * 0.7 * 0.7 * 0.7 * 0.7,
		RawScore:    0,
		LossCounter: 2,
		Holding:     true,
		Box:         [4]int{155, 130, 40, 40},
		Command:     "0 0 0 0",
		Actuator:    "OK",
		Counts:      Counts{Confident: 5, Weak: 1, Lost: 1, LostEvents: 1},
	}
	diff := cmp.Diff(expected, session.Status().Snapshot(),
		cmpopts.IgnoreFields(Snapshot{}, "StartedAt", "UpdatedAt"),
		cmpopts.EquateApprox(0, 1e-9),
	)
	if diff != "" {
		t.Errorf("Unexpected snapshot (-want +got):\n%s", diff)
	}
}

func TestSessionActuatorGone(t *testing.T) {
	source := newFrameSource(4)
	stream := seededStream(t, &driftModel{zeroFrom: 100}, source, false)
	peer := &echoPeer{replies: strings.NewReader("OK\n"), dead: false}
	session := NewSession(stream, actuator.NewBridge(peer, time.Second, nil), nil)

	frames := 0
	session.OnResult(func(result sot.Result) {
		frames++
		// Peer dies after the first command
		peer.dead = true
	})
	require.NoError(t, session.Run(context.Background()))
	require.Equal(t, 4, frames)

	snap := session.Status().Snapshot()
	require.Equal(t, 4, snap.Frames)
	require.Contains(t, snap.ActuatorErr, actuator.ErrActuatorUnavailable.Error())
	require.Equal(t, "135 130 40 40\n", peer.written.String())
	require.Equal(t, 1, peer.terminated)
}

func TestSessionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := newFrameSource(10)
	source.cancelAt = 3
	source.cancel = cancel
	stream := seededStream(t, &driftModel{zeroFrom: 100}, source, false)
	session := NewSession(stream, nil, nil)

	require.NoError(t, session.Run(ctx))
	snap := session.Status().Snapshot()
	require.Equal(t, 2, snap.Frames)
	require.False(t, snap.Running)
	require.Equal(t, 1, source.closed)
}

type failingModel struct{}

func (failingModel) Advance(ctx context.Context, prev sot.TrackState, frame sot.Frame) (sot.TrackState, error) {
	return sot.TrackState{}, errors.New("cuda out of memory")
}

func TestSessionInferenceBudget(t *testing.T) {
	source := newFrameSource(50)
	stream := seededStream(t, failingModel{}, source, false)
	peer := &echoPeer{replies: strings.NewReader(strings.Repeat("OK\n", 50))}
	session := NewSession(stream, actuator.NewBridge(peer, time.Second, nil), nil)

	err := session.Run(context.Background())
	var inferErr *sot.InferenceError
	require.True(t, errors.As(err, &inferErr), "got %v", err)
	require.Equal(t, sot.DefaultParams().MaxInferenceErrors+1, inferErr.Failures)

	snap := session.Status().Snapshot()
	require.Equal(t, sot.DefaultParams().MaxInferenceErrors, snap.Counts.InferenceErrors)
	require.Equal(t, 1, peer.terminated)
	require.Equal(t, 1, source.closed)
}

func TestSessionNotSeeded(t *testing.T) {
	sup := sot.NewSupervisorDefault(&driftModel{})
	source := newFrameSource(1)
	session := NewSession(sot.NewStream(sup, source, false), nil, nil)
	require.True(t, errors.Is(session.Run(context.Background()), sot.ErrNotInitialized))
	require.Equal(t, 1, source.closed)
}
