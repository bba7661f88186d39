//go:build gocv
// +build gocv

package vision

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sot-go/sot"
)

func TestCleanMaskKeepsLargestBlob(t *testing.T) {
	mask := sot.NewMask(100, 100)
	mask.Fill(image.Rect(10, 10, 40, 30))
	// Speckle far from the target
	mask.Fill(image.Rect(90, 90, 93, 93))
	// Smaller blob
	mask.Fill(image.Rect(60, 60, 70, 70))

	cleaned, err := CleanMask(mask, DefaultMinContourArea)
	require.NoError(t, err)
	xMin, yMin, xMax, yMax, ok := cleaned.ForegroundBounds()
	require.True(t, ok)
	require.Equal(t, []int{10, 10, 39, 29}, []int{xMin, yMin, xMax, yMax})

	rect, err := BlobBounds(mask, DefaultMinContourArea)
	require.NoError(t, err)
	require.Equal(t, image.Rect(10, 10, 40, 30), rect)
}

func TestCleanMaskOnlySpeckles(t *testing.T) {
	mask := sot.NewMask(50, 50)
	mask.Fill(image.Rect(1, 1, 4, 4))
	_, err := CleanMask(mask, DefaultMinContourArea)
	require.True(t, errors.Is(err, sot.ErrEmptyMask))
}

func syntheticFrame(seq, x, y int) sot.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for py := 0; py < 120; py++ {
		for px := 0; px < 160; px++ {
			img.Set(px, py, color.RGBA{R: uint8(px), G: uint8(py), B: 40, A: 255})
		}
	}
	for py := y; py < y+20; py++ {
		for px := x; px < x+20; px++ {
			img.Set(px, py, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return sot.Frame{Seq: seq, Image: img}
}

func TestTrackerModelFollowsSquare(t *testing.T) {
	model, err := NewTrackerModel()
	require.NoError(t, err)
	defer model.Close()

	seed := sot.TrackState{Center: sot.Point{X: 50, Y: 50}, Size: sot.Size{Width: 20, Height: 20}, Score: 1}
	require.NoError(t, model.Init(context.Background(), syntheticFrame(0, 40, 40), seed))

	state := seed
	for i := 1; i <= 5; i++ {
		state, err = model.Advance(context.Background(), state, syntheticFrame(i, 40+2*i, 40))
		require.NoError(t, err)
	}
	require.Equal(t, 1.0, state.Score)
	require.InDelta(t, 60, state.Center.X, 6)
}

func TestTrackerModelReanchorsOnReplacedState(t *testing.T) {
	model, err := NewTrackerModel()
	require.NoError(t, err)
	defer model.Close()

	seed := sot.TrackState{Center: sot.Point{X: 50, Y: 50}, Size: sot.Size{Width: 20, Height: 20}, Score: 1}
	require.NoError(t, model.Init(context.Background(), syntheticFrame(0, 40, 40), seed))

	_, err = model.Advance(context.Background(), seed, syntheticFrame(1, 42, 40))
	require.NoError(t, err)
	require.Equal(t, 0, model.Reanchors())

	// Caller froze on a state far from the tracker's own estimate: square is there now
	frozen := sot.TrackState{Center: sot.Point{X: 110, Y: 80}, Size: sot.Size{Width: 20, Height: 20}, Score: 1}
	state, err := model.Advance(context.Background(), frozen, syntheticFrame(2, 100, 70))
	require.NoError(t, err)
	require.Equal(t, 1, model.Reanchors())
	require.Equal(t, 1.0, state.Score)
	require.InDelta(t, 110, state.Center.X, 6)
	require.InDelta(t, 80, state.Center.Y, 6)

	// Tracker's own estimate handed back does not restart it
	_, err = model.Advance(context.Background(), state, syntheticFrame(3, 101, 70))
	require.NoError(t, err)
	require.Equal(t, 1, model.Reanchors())
}
