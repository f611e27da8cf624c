package transform

import (
	"context"
	"fmt"
	"math"
	"time"

	"iocgo/internal/port"
	"iocgo/internal/timeutil"
)

// PIDConfig is a standard PID controller: err = set_point - process_var,
// recomputed on every tick (period_ms) or whenever any input changes. The
// gains p, i, d are themselves Float inputs, so they can be tuned live
// from the server UI or driven by other transformers. No anti-windup is
// implemented; downstream Clamp/Limiter handles that if needed.
type PIDConfig struct {
	SetPoint   string `yaml:"set_point"`
	ProcessVar string `yaml:"process_var"`
	P          string `yaml:"p"`
	I          string `yaml:"i"`
	D          string `yaml:"d"`
	PeriodMs   int64  `yaml:"period_ms"`
}

func (c PIDConfig) NeedsInputs() []string {
	return []string{c.SetPoint, c.ProcessVar, c.P, c.I, c.D}
}

func (c PIDConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	floatIn := func(field, name string) (port.Input[float64], error) {
		ik, ok := lookup(name)
		if !ok {
			return nil, fmt.Errorf("pid: %s %q not found", field, name)
		}
		if ik.Kind != port.KindFloat {
			return nil, fmt.Errorf("pid: %s %q is not Float", field, name)
		}
		return ik.Float, nil
	}
	setPoint, err := floatIn("set_point", c.SetPoint)
	if err != nil {
		return nil, nil, err
	}
	processVar, err := floatIn("process_var", c.ProcessVar)
	if err != nil {
		return nil, nil, err
	}
	pIn, err := floatIn("p", c.P)
	if err != nil {
		return nil, nil, err
	}
	iIn, err := floatIn("i", c.I)
	if err != nil {
		return nil, nil, err
	}
	dIn, err := floatIn("d", c.D)
	if err != nil {
		return nil, nil, err
	}
	if c.PeriodMs <= 0 {
		return nil, nil, fmt.Errorf("pid: period_ms must be > 0")
	}
	period := time.Duration(c.PeriodMs) * time.Millisecond

	// Before the first full step only the proportional component is
	// known, so that is the start value.
	startErr := setPoint.Latest() - processVar.Latest()
	out, outKind := port.NewFloatChannel(pIn.Latest()*startErr, false)

	wake := make(chan struct{}, 1)
	closed := watchGroup(
		func() { watch(ctx, setPoint, wake) },
		func() { watch(ctx, processVar, wake) },
		func() { watch(ctx, pIn, wake) },
		func() { watch(ctx, iIn, wake) },
		func() { watch(ctx, dIn, wake) },
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		lastUpdate := time.Now()
		lastErr := startErr
		var integralSum float64

		timer := time.NewTimer(period)
		defer timer.Stop()

		step := func() {
			now := time.Now()
			dt := now.Sub(lastUpdate).Seconds()
			err := setPoint.Latest() - processVar.Latest()

			var derivative float64
			if dt > 0 {
				derivative = (err - lastErr) / dt
			}
			if !math.IsInf(err, 0) && !math.IsNaN(err) {
				integralSum += err * dt
			}

			out.Publish(pIn.Latest()*err + iIn.Latest()*integralSum + dIn.Latest()*derivative)

			lastErr = err
			lastUpdate = now
		}

		for {
			select {
			case <-wake:
				step()
			case <-timer.C:
				step()
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
