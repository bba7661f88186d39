package config

import (
	"image"
	// Decoders for reference image prompt
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LdDl/sot-go/actuator"
	"github.com/LdDl/sot-go/sot"
)

// Config is application configuration
type Config struct {
	Video struct {
		Source string
		Width  int
		Height int
	}
	Tracking struct {
		Alpha              float64
		ConfThreshold      float64
		MaxLost            int
		MinSeedSize        int
		MaxInferenceErrors int
		StopOnLost         bool
		Kalman             bool
		// local MIL tracker ("gocv") or remote model ("http")
		Appearance string
	}
	Oracle struct {
		BaseURL string
		Timeout int // seconds
	}
	Prompt struct {
		Text     string
		Points   string
		Box      string
		RefImage string
	}
	Actuator struct {
		Kind        string
		Command     string
		SerialPort  string
		SerialBaud  int
		KillTimeout time.Duration
	}
	Status struct {
		Addr string
	}
	Logging struct {
		Level  string
		Format string
	}
}

// Load reads optional .env file and then environment variables
func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Video.Source = getEnv("SOT_VIDEO_SOURCE", "0")
	cfg.Video.Width = getEnvInt("SOT_FRAME_WIDTH", 512)
	cfg.Video.Height = getEnvInt("SOT_FRAME_HEIGHT", 512)

	defaults := sot.DefaultParams()
	cfg.Tracking.Alpha = getEnvFloat("SOT_ALPHA", defaults.Alpha)
	cfg.Tracking.ConfThreshold = getEnvFloat("SOT_CONF_THRESHOLD", defaults.ConfThreshold)
	cfg.Tracking.MaxLost = getEnvInt("SOT_MAX_LOST", defaults.MaxLost)
	cfg.Tracking.MinSeedSize = getEnvInt("SOT_MIN_SEED_SIZE", defaults.MinSeedSize)
	cfg.Tracking.MaxInferenceErrors = getEnvInt("SOT_MAX_INFERENCE_ERRORS", defaults.MaxInferenceErrors)
	cfg.Tracking.StopOnLost = getEnvBool("SOT_STOP_ON_LOST", false)
	cfg.Tracking.Kalman = getEnvBool("SOT_KALMAN", false)
	cfg.Tracking.Appearance = strings.ToLower(getEnv("SOT_APPEARANCE", "http"))

	cfg.Oracle.BaseURL = getEnv("SOT_ORACLE_URL", "http://localhost:8000")
	cfg.Oracle.Timeout = getEnvInt("SOT_ORACLE_TIMEOUT_SECONDS", 30)

	cfg.Prompt.Text = getEnv("SOT_PROMPT_TEXT", "")
	cfg.Prompt.Points = getEnv("SOT_PROMPT_POINTS", "")
	cfg.Prompt.Box = getEnv("SOT_PROMPT_BOX", "")
	cfg.Prompt.RefImage = getEnv("SOT_PROMPT_REF_IMAGE", "")

	cfg.Actuator.Kind = strings.ToLower(getEnv("SOT_ACTUATOR", "process"))
	cfg.Actuator.Command = getEnv("SOT_ACTUATOR_CMD", "./rover_controller")
	cfg.Actuator.SerialPort = getEnv("SOT_SERIAL_PORT", "")
	cfg.Actuator.SerialBaud = getEnvInt("SOT_SERIAL_BAUD", 115200)
	cfg.Actuator.KillTimeout = getEnvDuration("SOT_ACTUATOR_KILL_TIMEOUT", actuator.DefaultKillTimeout)

	cfg.Status.Addr = getEnv("SOT_STATUS_ADDR", "")

	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")
	cfg.Logging.Format = strings.ToLower(getEnv("LOG_FORMAT", "text"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (cfg *Config) Validate() error {
	if cfg.Video.Width <= 0 || cfg.Video.Height <= 0 {
		return errors.Errorf("frame size must be positive, got %dx%d", cfg.Video.Width, cfg.Video.Height)
	}
	if err := cfg.Params().Validate(); err != nil {
		return errors.Wrap(err, "invalid tracking config")
	}
	switch cfg.Tracking.Appearance {
	case "http", "gocv":
	default:
		return errors.Errorf("unknown appearance model %q: expected http or gocv", cfg.Tracking.Appearance)
	}
	switch cfg.Actuator.Kind {
	case "process":
		if strings.TrimSpace(cfg.Actuator.Command) == "" {
			return errors.New("actuator command is required for process actuator")
		}
	case "serial":
		if cfg.Actuator.SerialPort == "" {
			return errors.New("serial port is required for serial actuator")
		}
		if _, err := cfg.SerialOptions().Normalize(); err != nil {
			return err
		}
	case "none":
	default:
		return errors.Errorf("unknown actuator %q: expected process, serial or none", cfg.Actuator.Kind)
	}
	if cfg.Actuator.KillTimeout < 0 {
		return errors.Errorf("kill timeout must not be negative, got %s", cfg.Actuator.KillTimeout)
	}
	if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return errors.Errorf("unknown log format %q: expected text or json", cfg.Logging.Format)
	}
	return nil
}

// Params converts tracking section into supervisor parameters
func (cfg *Config) Params() sot.Params {
	params := sot.DefaultParams()
	params.Alpha = cfg.Tracking.Alpha
	params.ConfThreshold = cfg.Tracking.ConfThreshold
	params.MaxLost = cfg.Tracking.MaxLost
	params.MinSeedSize = cfg.Tracking.MinSeedSize
	params.MaxInferenceErrors = cfg.Tracking.MaxInferenceErrors
	return params
}

// SerialOptions returns serial actuator options
func (cfg *Config) SerialOptions() actuator.SerialOptions {
	return actuator.SerialOptions{BaudRate: cfg.Actuator.SerialBaud}
}

// ActuatorCommand splits actuator command line into executable and arguments
func (cfg *Config) ActuatorCommand() (string, []string) {
	fields := strings.Fields(cfg.Actuator.Command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// OracleTimeout returns HTTP timeout of the inference service client
func (cfg *Config) OracleTimeout() time.Duration {
	return time.Duration(cfg.Oracle.Timeout) * time.Second
}

// NewLogger creates logger with configured level and formatter
func (cfg *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// SeedPrompt builds segmentation prompt from configuration. Exactly one prompt source must be set.
// Points are "x,y;x,y", box is "x1,y1,x2,y2", reference image is a JPEG or PNG path.
func (cfg *Config) SeedPrompt() (sot.Prompt, error) {
	var prompt sot.Prompt
	prompt.Text = strings.TrimSpace(cfg.Prompt.Text)
	if cfg.Prompt.Points != "" {
		points, err := parsePoints(cfg.Prompt.Points)
		if err != nil {
			return sot.Prompt{}, err
		}
		prompt.Points = points
	}
	if cfg.Prompt.Box != "" {
		values, err := parseInts(cfg.Prompt.Box, 4)
		if err != nil {
			return sot.Prompt{}, errors.Wrap(sot.ErrInvalidPrompt, err.Error())
		}
		box := image.Rect(values[0], values[1], values[2], values[3])
		prompt.Box = &box
	}
	if cfg.Prompt.RefImage != "" {
		img, err := loadImage(cfg.Prompt.RefImage)
		if err != nil {
			return sot.Prompt{}, err
		}
		prompt.Reference = img
	}
	if _, err := prompt.Kind(); err != nil {
		return sot.Prompt{}, errors.Wrap(err, "set exactly one of SOT_PROMPT_TEXT, SOT_PROMPT_POINTS, SOT_PROMPT_BOX, SOT_PROMPT_REF_IMAGE")
	}
	return prompt, nil
}

func parsePoints(value string) ([]image.Point, error) {
	var points []image.Point
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xy, err := parseInts(pair, 2)
		if err != nil {
			return nil, errors.Wrap(sot.ErrInvalidPrompt, err.Error())
		}
		points = append(points, image.Pt(xy[0], xy[1]))
	}
	return points, nil
}

func parseInts(value string, n int) ([]int, error) {
	parts := strings.Split(value, ",")
	if len(parts) != n {
		return nil, errors.Errorf("expected %d comma separated integers, got %q", n, value)
	}
	out := make([]int, n)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Errorf("bad integer %q", part)
		}
		out[i] = v
	}
	return out, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open reference image")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't decode reference image %s", path)
	}
	return img, nil
}

// getEnv returns environment variable or default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s") and plain seconds ("2")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}
