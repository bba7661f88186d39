//go:build gocv
// +build gocv

package vision

import (
	"context"
	"image"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/LdDl/sot-go/sot"
)

// VideoSource reads frames from camera or video file. It implements sot.FrameSource.
type VideoSource struct {
	capture *gocv.VideoCapture
	opts    SourceOptions
	mat     gocv.Mat
	resized gocv.Mat
	seq     int
	logger  *logrus.Logger
}

// OpenVideoSource opens camera (numeric URI) or file/stream
func OpenVideoSource(opts SourceOptions, logger *logrus.Logger) (*VideoSource, error) {
	var capture *gocv.VideoCapture
	var err error
	if device, convErr := strconv.Atoi(opts.URI); convErr == nil {
		capture, err = gocv.OpenVideoCapture(device)
	} else {
		capture, err = gocv.VideoCaptureFile(opts.URI)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrOpenSource, "%s: %v", opts.URI, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Wrap(ErrOpenSource, opts.URI)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	logger.WithFields(logrus.Fields{"source": opts.URI, "width": opts.Width, "height": opts.Height}).Info("Video source opened")
	return &VideoSource{
		capture: capture,
		opts:    opts,
		mat:     gocv.NewMat(),
		resized: gocv.NewMat(),
		logger:  logger,
	}, nil
}

// Next grabs next frame. Returns io.EOF when stream ends.
func (vs *VideoSource) Next(ctx context.Context) (sot.Frame, error) {
	if err := ctx.Err(); err != nil {
		return sot.Frame{}, err
	}
	if ok := vs.capture.Read(&vs.mat); !ok || vs.mat.Empty() {
		return sot.Frame{}, io.EOF
	}
	src := vs.mat
	if vs.opts.Width > 0 && vs.opts.Height > 0 && (vs.mat.Cols() != vs.opts.Width || vs.mat.Rows() != vs.opts.Height) {
		gocv.Resize(vs.mat, &vs.resized, image.Pt(vs.opts.Width, vs.opts.Height), 0, 0, gocv.InterpolationLinear)
		src = vs.resized
	}
	// ToImage converts BGR to RGBA
	img, err := src.ToImage()
	if err != nil {
		return sot.Frame{}, errors.Wrapf(err, "Can't convert frame %d", vs.seq)
	}
	frame := sot.Frame{Seq: vs.seq, Image: img}
	vs.seq++
	return frame, nil
}

// Close releases capture device and buffers
func (vs *VideoSource) Close() error {
	vs.mat.Close()
	vs.resized.Close()
	return vs.capture.Close()
}
