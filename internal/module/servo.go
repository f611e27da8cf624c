package module

import (
	"context"
	"fmt"
	"time"

	"iocgo/internal/hal"
	"iocgo/internal/mathx"
	"iocgo/internal/port"
)

// ServoConfig drives a PWM-backed actuator (servo, motor ESC, dimmer) from
// a Float Output in [0,1], ramped smoothly over ramp_ms in `steps`
// increments rather than jumping the duty cycle in one write.
type ServoConfig struct {
	Pin     string  `yaml:"pin"`
	RampMs  int64   `yaml:"ramp_ms"`
	Steps   int     `yaml:"steps"`
	Initial float64 `yaml:"initial"`
}

type servoBuilder struct{}

func init() { Register("servo", servoBuilder{}) }

func (servoBuilder) Build(ctx context.Context, raw any, deps Deps) (IO, error) {
	cfg, ok := raw.(ServoConfig)
	if !ok {
		return IO{}, fmt.Errorf("module servo: unexpected config type %T", raw)
	}
	if deps.PWM == nil {
		return IO{}, fmt.Errorf("module servo: no PWM factory configured")
	}
	pwm, ok := deps.PWM.ByName(cfg.Pin)
	if !ok {
		return IO{}, fmt.Errorf("module servo: PWM pin %q not available", cfg.Pin)
	}

	initial := mathx.Clamp(cfg.Initial, 0, 1)
	if err := pwm.SetDuty(initial); err != nil {
		return IO{}, fmt.Errorf("module servo: initial duty: %w", err)
	}

	in := port.NewChannel(initial, true) // control path, never drop
	done := make(chan struct{})
	sub := in.Source()

	go func() {
		defer close(done)
		defer sub.Close()
		cur := sub.Start
		for {
			select {
			case <-ctx.Done():
				return
			case target, ok := <-sub.Updates:
				if !ok {
					return
				}
				target = mathx.Clamp(target, 0, 1)
				rampLinear(ctx, cur, target, cfg.RampMs, cfg.Steps, pwm)
				cur = target
			}
		}
	}()

	return IO{
		Outputs: map[string]port.OutputKind{"value": port.WrapFloatOutput(in)},
		Done:    done,
	}, nil
}

// rampLinear steps the PWM duty cycle from cur to target over rampMs in
// `steps` increments. steps<=0 or rampMs<=0 snaps directly to target.
func rampLinear(ctx context.Context, cur, target float64, rampMs int64, steps int, pwm hal.PWMPin) {
	if steps <= 0 || rampMs <= 0 {
		_ = pwm.SetDuty(target)
		return
	}
	stepDur := time.Duration(rampMs) * time.Millisecond / time.Duration(steps)
	if stepDur <= 0 {
		stepDur = time.Millisecond
	}
	delta := target - cur
	timer := time.NewTimer(stepDur)
	defer timer.Stop()
	for i := 1; i < steps; i++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		frac := float64(i) / float64(steps)
		_ = pwm.SetDuty(mathx.Clamp(cur+delta*frac, 0, 1))
		timer.Reset(stepDur)
	}
	_ = pwm.SetDuty(target)
}
