package transform

import (
	"context"
	"fmt"

	"iocgo/internal/port"
)

// LinearConfig publishes y = m*x + b. Either (m, b) or the convenience
// (from, to) range pair may be given; from[0] == from[1] fails
// construction (zero-width domain).
type LinearConfig struct {
	Input string     `yaml:"input"`
	M     *float64   `yaml:"m,omitempty"`
	B     *float64   `yaml:"b,omitempty"`
	From  [2]float64 `yaml:"from,omitempty"`
	To    [2]float64 `yaml:"to,omitempty"`
}

func (c LinearConfig) NeedsInputs() []string { return []string{c.Input} }

func (c LinearConfig) resolve() (m, b float64, err error) {
	if c.M != nil && c.B != nil {
		return *c.M, *c.B, nil
	}
	if c.From[0] == c.From[1] {
		return 0, 0, fmt.Errorf("linear_transform: from range has zero width (%v)", c.From)
	}
	m = (c.To[1] - c.To[0]) / (c.From[1] - c.From[0])
	b = c.To[0] - m*c.From[0]
	return m, b, nil
}

func (c LinearConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("linear_transform: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindFloat {
		return nil, nil, fmt.Errorf("linear_transform: upstream %q is not Float", c.Input)
	}
	m, b, err := c.resolve()
	if err != nil {
		return nil, nil, err
	}
	in := ik.Float

	apply := func(x float64) float64 { return m*x + b }
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
