package transform

import (
	"context"
	"fmt"

	"iocgo/internal/port"
)

// HBridgeConfig consumes a signed Float and publishes the forward/reverse/
// enable triple an H-bridge motor driver expects, always recomputed
// atomically per input change so downstream PWM channels see a consistent
// set. The three outputs are control-path, so they use strict (no-drop)
// fan-out rather than the telemetry default.
type HBridgeConfig struct {
	Input string `yaml:"input"`
}

func (c HBridgeConfig) NeedsInputs() []string { return []string{c.Input} }

func hbridgeOutputs(x float64) (forward, reverse, enable float64) {
	if x > 0 {
		forward = x
	}
	if x < 0 {
		reverse = -x
	}
	if x != 0 {
		enable = 1.0
	}
	return forward, reverse, enable
}

func (c HBridgeConfig) Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error) {
	ik, ok := lookup(c.Input)
	if !ok {
		return nil, nil, fmt.Errorf("hbridge: upstream %q not found", c.Input)
	}
	if ik.Kind != port.KindFloat {
		return nil, nil, fmt.Errorf("hbridge: upstream %q is not Float", c.Input)
	}
	in := ik.Float

	f0, r0, e0 := hbridgeOutputs(in.Latest())
	forward := port.NewChannel(f0, true)
	reverse := port.NewChannel(r0, true)
	enable := port.NewChannel(e0, true)

	wake := make(chan struct{}, 1)
	closed := watchGroup(func() { watch(ctx, in, wake) })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-wake:
				f, r, e := hbridgeOutputs(in.Latest())
				forward.Publish(f)
				reverse.Publish(r)
				enable.Publish(e)
			case <-closed:
				forward.Close()
				reverse.Close()
				enable.Close()
				return
			case <-ctx.Done():
				forward.Close()
				reverse.Close()
				enable.Close()
				return
			}
		}
	}()

	return map[string]port.InputKind{
		"forward": port.WrapFloatInput(forward),
		"reverse": port.WrapFloatInput(reverse),
		"enable":  port.WrapFloatInput(enable),
	}, done, nil
}
