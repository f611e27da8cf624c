package module

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"iocgo/internal/port"
	"iocgo/internal/timeutil"
)

// NoiseConfig describes a synthetic test-signal source: a uniformly
// distributed Float sampled fresh every period_ms, starting immediately
// at build time rather than waiting out the first period.
type NoiseConfig struct {
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	PeriodMs int64   `yaml:"period_ms"`
}

type noiseBuilder struct{}

func init() { Register("noise", noiseBuilder{}) }

func (noiseBuilder) Build(ctx context.Context, raw any, _ Deps) (IO, error) {
	cfg, ok := raw.(NoiseConfig)
	if !ok {
		return IO{}, fmt.Errorf("module noise: unexpected config type %T", raw)
	}
	if cfg.Max < cfg.Min {
		return IO{}, fmt.Errorf("module noise: max %v < min %v", cfg.Max, cfg.Min)
	}
	if cfg.PeriodMs <= 0 {
		return IO{}, fmt.Errorf("module noise: period_ms must be positive")
	}

	span := cfg.Max - cfg.Min
	sample := func() float64 { return cfg.Min + rand.Float64()*span }

	out := port.NewChannel(sample(), false)
	period := time.Duration(cfg.PeriodMs) * time.Millisecond
	done := make(chan struct{})

	go func() {
		defer close(done)
		timer := time.NewTimer(period)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				out.Close()
				return
			case <-timer.C:
				out.Publish(sample())
				timeutil.ResetTimer(timer, period)
			}
		}
	}()

	return IO{
		Inputs: map[string]port.InputKind{
			"value": port.WrapFloatInput(out),
		},
		Done: done,
	}, nil
}
