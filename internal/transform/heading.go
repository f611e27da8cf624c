package transform

import (
	"context"
	"fmt"
	"math"

	"iocgo/internal/port"
)

// HeadingConfig takes an Array input of Floats [x, y, z, ...] and
// publishes the heading atan2(y, x); an input with fewer than 2 elements
// publishes NaN.
type HeadingConfig struct {
	Input string `yaml:"input"`
}

func (c HeadingConfig) NeedsInputs() []string { return []string{c.Input} }

func (c HeadingConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("heading: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindArray {
		return nil, nil, fmt.Errorf("heading: upstream %q is not an Array", c.Input)
	}
	in := ik.Array

	apply := func(vec []port.Value) float64 {
		if len(vec) < 2 {
			return math.NaN()
		}
		return math.Atan2(vec[1].Float, vec[0].Float)
	}
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
