package module

import (
	"context"
	"fmt"
	"time"

	"iocgo/internal/ioclog"
	"iocgo/internal/port"
)

// CameraConfig supervises an external MJPEG-producing child process
// (e.g. a v4l2 capture pipeline) and republishes its complete JPEG
// frames on a Binary input. quality/framerate/enable are Outputs the graph can
// drive; a quality or framerate change, or re-enabling, kills and restarts
// the child with updated arguments, since most capture tools only read such
// settings at start-up. Disabling stops the child.
type CameraConfig struct {
	Command        []string `yaml:"command"`
	QualityFlag    string   `yaml:"quality_flag"`   // e.g. "--quality"
	FramerateFlag  string   `yaml:"framerate_flag"` // e.g. "--framerate"
	InitialQuality float64  `yaml:"initial_quality"`
	InitialFPS     float64  `yaml:"initial_framerate"`
	RestartDelayMs int64    `yaml:"restart_delay_ms"`
}

type cameraBuilder struct{}

func init() { Register("camera", cameraBuilder{}) }

const (
	jpegSOI0 = 0xFF
	jpegSOI1 = 0xD8
	jpegEOI0 = 0xFF
	jpegEOI1 = 0xD9
)

func (cameraBuilder) Build(ctx context.Context, raw any, _ Deps) (IO, error) {
	cfg, ok := raw.(CameraConfig)
	if !ok {
		return IO{}, fmt.Errorf("module camera: unexpected config type %T", raw)
	}
	if len(cfg.Command) == 0 {
		return IO{}, fmt.Errorf("module camera: command must name an executable")
	}
	restartDelay := time.Duration(cfg.RestartDelayMs) * time.Millisecond
	if restartDelay <= 0 {
		restartDelay = 200 * time.Millisecond
	}

	frames := port.NewChannel([]byte(nil), false) // lossy: dropping a stale preview frame is fine
	qualityIn := port.NewChannel(cfg.InitialQuality, true)
	fpsIn := port.NewChannel(cfg.InitialFPS, true)
	enableIn := port.NewChannel(true, true)

	log := ioclog.For("camera")
	done := make(chan struct{})

	go func() {
		defer close(done)
		runCamera(ctx, cfg, restartDelay, frames, qualityIn, fpsIn, enableIn, log)
	}()

	return IO{
		Inputs: map[string]port.InputKind{
			"mjpeg": port.WrapBinaryInput(frames),
		},
		Outputs: map[string]port.OutputKind{
			"quality":   port.WrapFloatOutput(qualityIn),
			"framerate": port.WrapFloatOutput(fpsIn),
			"enable":    port.WrapBoolOutput(enableIn),
		},
		Done: done,
	}, nil
}
