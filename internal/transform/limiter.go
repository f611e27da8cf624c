package transform

import (
	"context"
	"fmt"
	"math"
	"time"

	"iocgo/internal/mathx"
	"iocgo/internal/port"
	"iocgo/internal/timeutil"
)

// LimiterConfig imposes a kinematic (position/velocity/acceleration)
// constraint on a target signal: the published value can only move as fast
// as the configured velocity and acceleration bounds allow, approaching
// the latest upstream value along a two-phase constant-acceleration
// trajectory that brings it to rest exactly on target.
type LimiterConfig struct {
	Input    string  `yaml:"input"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	DMin     float64 `yaml:"dmin"`
	DMax     float64 `yaml:"dmax"`
	DDMin    float64 `yaml:"ddmin"`
	DDMax    float64 `yaml:"ddmax"`
	PeriodMs int64   `yaml:"period_ms"`
}

func (c LimiterConfig) NeedsInputs() []string { return []string{c.Input} }

func (c LimiterConfig) validate() error {
	if c.Min > c.Max {
		return fmt.Errorf("limiter: min (%v) > max (%v)", c.Min, c.Max)
	}
	if !(c.DMin < 0 && 0 < c.DMax) {
		return fmt.Errorf("limiter: need dmin < 0 < dmax, got [%v, %v]", c.DMin, c.DMax)
	}
	if !(c.DDMin < 0 && 0 < c.DDMax) {
		return fmt.Errorf("limiter: need ddmin < 0 < ddmax, got [%v, %v]", c.DDMin, c.DDMax)
	}
	if c.PeriodMs <= 0 {
		return fmt.Errorf("limiter: period_ms must be > 0")
	}
	return nil
}

// solveAccelDeccelTimes solves the two-phase constant-acceleration
// trajectory from (x0, v0) that brings velocity to exactly zero at
// position target: t1 of acceleration `accel` followed by t2 of
// deceleration `deccel`. Returns ok=false when no non-negative (t1, t2)
// solution exists (the trajectory would overshoot before it can
// decelerate to a stop).
//
// t1 is the largest non-negative root of the quadratic
//
//	A*t1^2 + B*t1 + C = 0
//	A = 0.5*accel*(1 - accel/deccel)
//	B = v0*(1 - 3*accel/deccel)
//	C = x0 - 0.5*v0^2/deccel - target
//
// and t2 = (-v0 - accel*t1)/deccel, required non-negative.
func solveAccelDeccelTimes(accel, deccel, x0, v0, target float64) (t1, t2 float64, ok bool) {
	ratio := accel / deccel
	a := 0.5 * accel * (1 - ratio)
	b := v0 * (1 - 3*ratio)
	c := x0 - 0.5*v0*v0/deccel - target

	t1 = math.NaN()
	for _, r := range quadraticRoots(a, b, c) {
		if r >= 0 && (math.IsNaN(t1) || r > t1) {
			t1 = r
		}
	}
	if math.IsNaN(t1) {
		return 0, 0, false
	}
	t2 = (-v0 - accel*t1) / deccel
	if t2 < 0 {
		return 0, 0, false
	}
	return t1, t2, true
}

func quadraticRoots(a, b, c float64) []float64 {
	if a == 0 {
		if b == 0 {
			return nil
		}
		return []float64{-c / b}
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}

type limiterState struct {
	target   float64
	x, dx    float64
	ddx      float64
	lastTime time.Time
}

func (c LimiterConfig) step(s *limiterState, now time.Time) {
	dt := now.Sub(s.lastTime).Seconds()
	s.lastTime = now

	s.x = mathx.Clamp(s.x+s.dx*dt, c.Min, c.Max)

	var accel, deccel float64
	if s.target > s.x {
		accel, deccel = c.DDMax, -math.Abs(c.DDMin)
	} else {
		accel, deccel = -math.Abs(c.DDMin), c.DDMax
	}

	t1, t2, ok := solveAccelDeccelTimes(accel, deccel, s.x, s.dx, s.target)
	period := float64(c.PeriodMs) / 1000.0
	switch {
	case !ok:
		s.ddx = deccel
	case t1+t2 < period:
		s.x, s.dx, s.ddx = s.target, 0, 0
	case t1 < 1e-4:
		s.ddx = deccel
	default:
		s.ddx = accel
	}

	s.dx = mathx.Clamp(s.dx+s.ddx*dt, c.DMin, c.DMax)
}

func (c LimiterConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	if err := c.validate(); err != nil {
		return nil, nil, err
	}
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("limiter: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindFloat {
		return nil, nil, fmt.Errorf("limiter: upstream %q is not Float", c.Input)
	}
	in := ik.Float
	period := time.Duration(c.PeriodMs) * time.Millisecond

	initial := mathx.Clamp(in.Latest(), c.Min, c.Max)
	out, outKind := port.NewFloatChannel(initial, false)

	wake := make(chan struct{}, 1)
	closed := watchGroup(func() { watch(ctx, in, wake) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		s := &limiterState{target: in.Latest(), x: initial, lastTime: time.Now()}
		timer := time.NewTimer(period)
		defer timer.Stop()

		for {
			select {
			case <-wake:
				s.target = in.Latest()
				c.step(s, time.Now())
				out.Publish(s.x)
			case <-timer.C:
				c.step(s, time.Now())
				out.Publish(s.x)
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
