package transform

import (
	"context"
	"fmt"
	"time"

	"iocgo/internal/port"
	"iocgo/internal/timeutil"
)

// WindowAverageConfig is a Riemann-integral debouncer: it accumulates
// upstream changes as a step function and, every period_ms, emits the
// time-weighted average over the elapsed window. Useful for turning a
// high-frequency UI scrub control into a kinematically friendly rate.
type WindowAverageConfig struct {
	Input    string `yaml:"input"`
	PeriodMs int64  `yaml:"period_ms"`
}

func (c WindowAverageConfig) NeedsInputs() []string { return []string{c.Input} }

func (c WindowAverageConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("windowed_average: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindFloat {
		return nil, nil, fmt.Errorf("windowed_average: upstream %q is not Float", c.Input)
	}
	if c.PeriodMs <= 0 {
		return nil, nil, fmt.Errorf("windowed_average: period_ms must be > 0")
	}
	in := ik.Float
	period := time.Duration(c.PeriodMs) * time.Millisecond

	start := in.Latest()
	out, outKind := port.NewFloatChannel(start, false)

	wake := make(chan struct{}, 1)
	closed := watchGroup(func() { watch(ctx, in, wake) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		now := time.Now()
		lastValue := start
		lastAppend := now
		windowStart := now
		var sum float64

		timer := time.NewTimer(period)
		defer timer.Stop()

		for {
			select {
			case <-wake:
				t := time.Now()
				sum += lastValue * t.Sub(lastAppend).Seconds()
				lastValue = in.Latest()
				lastAppend = t
			case <-timer.C:
				t := time.Now()
				var avg float64
				if windowStart.Equal(lastAppend) {
					avg = lastValue
				} else {
					sum += lastValue * t.Sub(lastAppend).Seconds()
					avg = sum / t.Sub(windowStart).Seconds()
				}
				out.Publish(avg)
				sum = 0
				windowStart = t
				lastAppend = t
				timeutil.ResetTimer(timer, period)
			case <-closed:
				out.Close()
				return
			case <-ctx.Done():
				out.Close()
				return
			}
		}
	}()

	return map[string]port.InputKind{"value": outKind}, done, nil
}
