package transform

import (
	"context"
	"fmt"

	"iocgo/internal/port"
)

// SumConfig takes N Float inputs and publishes their sum under "value".
// The sum is well-defined from construction, including the degenerate
// N == 0 case (constant zero).
type SumConfig struct {
	Inputs []string `yaml:"inputs"`
}

func (c SumConfig) NeedsInputs() []string { return c.Inputs }

func (c SumConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	ups := make([]port.Input[float64], 0, len(c.Inputs))
	for _, name := range c.Inputs {
		ik, ok := lookup(name)
		if !ok {
			return nil, nil, fmt.Errorf("sum: upstream %q not found", name)
		}
		if ik.Kind != port.KindFloat {
			return nil, nil, fmt.Errorf("sum: upstream %q is not Float", name)
		}
		ups = append(ups, ik.Float)
	}

	// No mirrored copy of upstream values is kept: each upstream's
	// latest value is always readable, so recomputation never depends on
	// state that could be lost mid-update.
	sumOf := func() float64 {
		s := 0.0
		for _, u := range ups {
			s += u.Latest()
		}
		return s
	}

	out, outKind := port.NewFloatChannel(sumOf(), false)

	wake := make(chan struct{}, 1)
	watchers := make([]func(), len(ups))
	for i, u := range ups {
		u := u
		watchers[i] = func() { watch(ctx, u, wake) }
	}
	closed := watchGroup(watchers...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-wake:
				out.Publish(sumOf())
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
