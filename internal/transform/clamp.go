package transform

import (
	"context"
	"fmt"

	"iocgo/internal/mathx"
	"iocgo/internal/port"
)

// ClampConfig publishes max(min, min(max, x)) on every upstream change.
type ClampConfig struct {
	Input string  `yaml:"input"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
}

func (c ClampConfig) NeedsInputs() []string { return []string{c.Input} }

func (c ClampConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	if c.Min > c.Max {
		return nil, nil, fmt.Errorf("clamp: min (%v) > max (%v)", c.Min, c.Max)
	}
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("clamp: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindFloat {
		return nil, nil, fmt.Errorf("clamp: upstream %q is not Float", c.Input)
	}
	in := ik.Float

	apply := func(x float64) float64 { return mathx.Clamp(x, c.Min, c.Max) }
	out, outKind := port.NewFloatChannel(apply(in.Latest()), false)

	wake := make(chan struct{}, 1)
	closed := watchGroup(func() { watch(ctx, in, wake) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-wake:
				out.Publish(apply(in.Latest()))
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
