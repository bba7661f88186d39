// Package oracle talks to the python inference service which hosts pretrained appearance (tracking) and segmentation models.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/sot"
)

// Client is an HTTP client of the inference service. It implements sot.AppearanceModel, sot.Initializer and sot.SegmentationOracle.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	// Tracker session on the service side, created on Init
	session uuid.UUID
	quality int
}

// NewClient creates client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		quality: 90,
	}
}

// stateDTO is wire representation of sot.TrackState
type stateDTO struct {
	Session string  `json:"session,omitempty"`
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Score   float64 `json:"score"`
}

func toDTO(state sot.TrackState) stateDTO {
	return stateDTO{
		CenterX: state.Center.X,
		CenterY: state.Center.Y,
		Width:   state.Size.Width,
		Height:  state.Size.Height,
		Score:   state.Score,
	}
}

func (dto stateDTO) toState() sot.TrackState {
	return sot.TrackState{
		Center: sot.Point{X: dto.CenterX, Y: dto.CenterY},
		Size:   sot.Size{Width: dto.Width, Height: dto.Height},
		Score:  dto.Score,
	}
}

// HealthResponse is the inference service health report
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// Session returns current tracker session identifier (uuid.Nil before Init)
func (c *Client) Session() uuid.UUID {
	return c.session
}

// Init starts new tracker session on the service with seed frame and state
func (c *Client) Init(ctx context.Context, frame sot.Frame, state sot.TrackState) error {
	c.session = uuid.New()
	dto := toDTO(state)
	dto.Session = c.session.String()
	_, err := c.postFrame(ctx, "/track/init", frame, dto, nil)
	if err != nil {
		return errors.Wrap(err, "Can't initialize remote tracker")
	}
	c.logger.WithField("session", dto.Session).Info("Remote tracker initialized")
	return nil
}

// Advance sends frame and previous state and returns tracker estimate. Failures wrap sot.ErrInference.
func (c *Client) Advance(ctx context.Context, prev sot.TrackState, frame sot.Frame) (sot.TrackState, error) {
	dto := toDTO(prev)
	dto.Session = c.session.String()
	body, err := c.postFrame(ctx, "/track/advance", frame, dto, nil)
	if err != nil {
		return sot.TrackState{}, errors.Wrapf(sot.ErrInference, "frame %d: %v", frame.Seq, err)
	}
	var next stateDTO
	if err := json.Unmarshal(body, &next); err != nil {
		return sot.TrackState{}, errors.Wrapf(sot.ErrInference, "frame %d: bad response: %v", frame.Seq, err)
	}
	if next.Width <= 0 || next.Height <= 0 {
		return sot.TrackState{}, errors.Wrapf(sot.ErrInference, "frame %d: degenerate size %fx%f", frame.Seq, next.Width, next.Height)
	}
	return next.toState(), nil
}

// Segment asks service for target mask. Response is a PNG image of frame size.
func (c *Client) Segment(ctx context.Context, frame sot.Frame, prompt sot.Prompt) (*sot.Mask, error) {
	kind, err := prompt.Kind()
	if err != nil {
		return nil, err
	}
	fields := map[string]string{"kind": kind.String()}
	switch kind {
	case sot.PromptText:
		fields["text"] = prompt.Text
	case sot.PromptPoints:
		points := make([][2]int, len(prompt.Points))
		for i, pt := range prompt.Points {
			points[i] = [2]int{pt.X, pt.Y}
		}
		raw, err := json.Marshal(points)
		if err != nil {
			return nil, errors.Wrap(err, "Can't encode points")
		}
		fields["points"] = string(raw)
	case sot.PromptBox:
		raw, err := json.Marshal([4]int{prompt.Box.Min.X, prompt.Box.Min.Y, prompt.Box.Max.X, prompt.Box.Max.Y})
		if err != nil {
			return nil, errors.Wrap(err, "Can't encode box")
		}
		fields["box"] = string(raw)
	}

	var reference image.Image
	if kind == sot.PromptReference {
		reference = prompt.Reference
	}
	body, err := c.postFrame(ctx, "/segment", frame, fields, reference)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnprocessableEntity {
			return nil, errors.Wrap(sot.ErrInvalidPrompt, statusErr.Body)
		}
		return nil, errors.Wrap(err, "Can't segment frame")
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode mask")
	}
	mask := sot.MaskFromImage(img)
	c.logger.WithFields(logrus.Fields{"prompt": kind.String(), "width": mask.Width, "height": mask.Height}).Debug("Mask received")
	return mask, nil
}

// CheckHealth checks inference service state
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create request")
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, errors.Wrap(err, "Can't parse health response")
	}
	return &health, nil
}

// StatusError is returned for non-200 responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference service returned status %d: %s", e.Code, e.Body)
}

// postFrame sends multipart form: JPEG encoded frame, "state" JSON (or plain fields) and optional reference image
func (c *Client) postFrame(ctx context.Context, path string, frame sot.Frame, payload any, reference image.Image) ([]byte, error) {
	if frame.Empty() {
		return nil, errors.Wrap(sot.ErrInvalidInput, "empty frame")
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := c.writeImage(writer, "frame", "frame.jpg", frame.Image); err != nil {
		return nil, err
	}
	if reference != nil {
		if err := c.writeImage(writer, "reference", "reference.jpg", reference); err != nil {
			return nil, err
		}
	}
	switch fields := payload.(type) {
	case map[string]string:
		for key, value := range fields {
			if err := writer.WriteField(key, value); err != nil {
				return nil, errors.Wrapf(err, "Can't write field %s", key)
			}
		}
	default:
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "Can't encode state")
		}
		if err := writer.WriteField("state", string(raw)); err != nil {
			return nil, errors.Wrap(err, "Can't write state field")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "Can't close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, errors.Wrap(err, "Can't create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.logger.Debugf("POST %s (frame %d)", path, frame.Seq)
	return c.do(req)
}

func (c *Client) writeImage(writer *multipart.Writer, field, filename string, img image.Image) error {
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return errors.Wrapf(err, "Can't create form file %s", field)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return errors.Wrapf(err, "Can't encode %s", field)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't send request")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
