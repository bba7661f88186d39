package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/actuator"
	"github.com/LdDl/sot-go/internal/api"
	"github.com/LdDl/sot-go/internal/config"
	"github.com/LdDl/sot-go/oracle"
	"github.com/LdDl/sot-go/runner"
	"github.com/LdDl/sot-go/sot"
	"github.com/LdDl/sot-go/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Can't load configuration: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Tracking stopped with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	prompt, err := cfg.SeedPrompt()
	if err != nil {
		return err
	}

	source, err := vision.OpenVideoSource(vision.SourceOptions{
		URI:    cfg.Video.Source,
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
	}, logger)
	if err != nil {
		return errors.Wrap(err, "Can't open video source")
	}

	client := oracle.NewClient(cfg.Oracle.BaseURL, cfg.OracleTimeout(), logger)
	model, err := newAppearanceModel(cfg, client)
	if err != nil {
		source.Close()
		return err
	}
	if closer, ok := model.(io.Closer); ok {
		defer closer.Close()
	}

	sup, err := sot.NewSupervisor(model, cfg.Params(), logger)
	if err != nil {
		source.Close()
		return err
	}

	seedFrame, err := source.Next(ctx)
	if err != nil {
		source.Close()
		return errors.Wrap(err, "Can't read seed frame")
	}
	box, err := sup.SeedWithOracle(ctx, &cleaningOracle{inner: client, logger: logger}, seedFrame, prompt)
	if err != nil {
		source.Close()
		return errors.Wrap(err, "Can't seed tracker")
	}
	logger.WithField("box", box.String()).Info("Target selected")

	bridge := newBridge(cfg, logger)
	stream := sot.NewStream(sup, source, cfg.Tracking.StopOnLost)
	session := runner.NewSession(stream, bridge, logger)
	session.OnResult(func(result sot.Result) {
		logger.WithFields(logrus.Fields{
			"frame": result.Seq,
			"state": result.State.String(),
			"box":   result.Box.String(),
			"score": result.Score,
		}).Trace("Frame processed")
	})

	if cfg.Status.Addr != "" {
		server := api.NewServer(cfg.Status.Addr, api.NewStatusHandler(session.Status(), client, logger), logger)
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.WithError(err).Error("Status API stopped")
			}
		}()
	}

	return session.Run(ctx)
}

func newAppearanceModel(cfg *config.Config, client *oracle.Client) (sot.AppearanceModel, error) {
	var model sot.AppearanceModel = client
	if cfg.Tracking.Appearance == "gocv" {
		tracker, err := vision.NewTrackerModel()
		if err != nil {
			return nil, errors.Wrap(err, "Can't create MIL tracker")
		}
		model = tracker
	}
	if cfg.Tracking.Kalman {
		model = sot.NewKalmanModel(model, cfg.Tracking.ConfThreshold)
	}
	return model, nil
}

// newBridge starts actuator. Tracking goes on without one if it can't be started.
func newBridge(cfg *config.Config, logger *logrus.Logger) *actuator.Bridge {
	var peer actuator.Peer
	var err error
	switch cfg.Actuator.Kind {
	case "process":
		name, args := cfg.ActuatorCommand()
		peer, err = actuator.StartProcess(name, args, logger)
	case "serial":
		peer, err = actuator.OpenSerial(cfg.Actuator.SerialPort, cfg.SerialOptions())
	default:
		logger.Info("Running without actuator")
		return nil
	}
	if err != nil {
		logger.WithError(err).Error("Can't start actuator, running without it")
		return nil
	}
	return actuator.NewBridge(peer, cfg.Actuator.KillTimeout, logger)
}

// cleaningOracle drops segmentation speckles before the mask becomes a seed
type cleaningOracle struct {
	inner  sot.SegmentationOracle
	logger *logrus.Logger
}

func (o *cleaningOracle) Segment(ctx context.Context, frame sot.Frame, prompt sot.Prompt) (*sot.Mask, error) {
	mask, err := o.inner.Segment(ctx, frame, prompt)
	if err != nil {
		return nil, err
	}
	cleaned, err := vision.CleanMask(mask, vision.DefaultMinContourArea)
	switch {
	case err == nil:
		return cleaned, nil
	case errors.Is(err, vision.ErrDisabled):
		return mask, nil
	default:
		o.logger.WithError(err).Warn("Can't clean mask, using it as is")
		return mask, nil
	}
}
