package config

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sot-go/actuator"
	"github.com/LdDl/sot-go/sot"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
	})
}

func TestLoadDefaults(t *testing.T) {
	// Keep .env of the developer out of the way
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "0", cfg.Video.Source)
	require.Equal(t, 512, cfg.Video.Width)
	require.Equal(t, 512, cfg.Video.Height)
	require.Equal(t, sot.DefaultParams(), cfg.Params())
	require.False(t, cfg.Tracking.StopOnLost)
	require.Equal(t, "http", cfg.Tracking.Appearance)
	require.Equal(t, "process", cfg.Actuator.Kind)
	require.Equal(t, actuator.DefaultKillTimeout, cfg.Actuator.KillTimeout)
	require.Equal(t, 30*time.Second, cfg.OracleTimeout())

	name, args := cfg.ActuatorCommand()
	require.Equal(t, "./rover_controller", name)
	require.Empty(t, args)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SOT_ALPHA", "0.5")
	t.Setenv("SOT_MAX_LOST", "5")
	t.Setenv("SOT_STOP_ON_LOST", "true")
	t.Setenv("SOT_ACTUATOR", "SERIAL")
	t.Setenv("SOT_SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("SOT_ACTUATOR_KILL_TIMEOUT", "1.5")
	t.Setenv("SOT_ACTUATOR_CMD", "python3 controller.py --verbose")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.Params().Alpha)
	require.Equal(t, 5, cfg.Params().MaxLost)
	require.True(t, cfg.Tracking.StopOnLost)
	require.Equal(t, "serial", cfg.Actuator.Kind)
	require.Equal(t, 1500*time.Millisecond, cfg.Actuator.KillTimeout)

	name, args := cfg.ActuatorCommand()
	require.Equal(t, "python3", name)
	require.Equal(t, []string{"controller.py", "--verbose"}, args)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SOT_CONF_THRESHOLD=0.5\nSOT_APPEARANCE=gocv\n"), 0o644))
	// godotenv does not override variables set by the environment, so clear them once the test ends
	t.Setenv("SOT_CONF_THRESHOLD", "")
	t.Setenv("SOT_APPEARANCE", "")
	os.Unsetenv("SOT_CONF_THRESHOLD")
	os.Unsetenv("SOT_APPEARANCE")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.Tracking.ConfThreshold)
	require.Equal(t, "gocv", cfg.Tracking.Appearance)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	cases := map[string]string{
		"SOT_ALPHA":      "1.5",
		"SOT_APPEARANCE": "siamese",
		"SOT_ACTUATOR":   "bluetooth",
		"LOG_LEVEL":      "loud",
		"LOG_FORMAT":     "xml",
		"SOT_MAX_LOST":   "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
		})
	}

	t.Run("serial without port", func(t *testing.T) {
		t.Setenv("SOT_ACTUATOR", "serial")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestSeedPrompt(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.SeedPrompt()
	require.True(t, errors.Is(err, sot.ErrInvalidPrompt))

	cfg.Prompt.Points = "10,20; 30,40"
	prompt, err := cfg.SeedPrompt()
	require.NoError(t, err)
	require.Equal(t, []image.Point{{X: 10, Y: 20}, {X: 30, Y: 40}}, prompt.Points)

	cfg.Prompt.Text = "person in red"
	_, err = cfg.SeedPrompt()
	require.True(t, errors.Is(err, sot.ErrInvalidPrompt))

	cfg = &Config{}
	cfg.Prompt.Box = "1,2,3"
	_, err = cfg.SeedPrompt()
	require.True(t, errors.Is(err, sot.ErrInvalidPrompt))

	cfg.Prompt.Box = "1,2,30,40"
	prompt, err = cfg.SeedPrompt()
	require.NoError(t, err)
	require.Equal(t, image.Rect(1, 2, 30, 40), *prompt.Box)

	path := filepath.Join(t.TempDir(), "ref.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())

	cfg = &Config{}
	cfg.Prompt.RefImage = path
	prompt, err = cfg.SeedPrompt()
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 4), prompt.Reference.Bounds())

	cfg.Prompt.RefImage = filepath.Join(t.TempDir(), "missing.png")
	_, err = cfg.SeedPrompt()
	require.Error(t, err)
}
