package module

import (
	"context"
	"fmt"

	"iocgo/internal/feedback"
	"iocgo/internal/port"
)

// FeedbackConfig declares a loopback cell in the graph: a module exposing
// one Input and one Output named "value" over the same latest value, used
// to break an otherwise-cyclic wiring (the builder's transformer
// resolution only progresses forward, so a loop must be materialized as
// two half-edges through one of these).
type FeedbackConfig struct {
	Kind    string `yaml:"kind"`
	Initial any    `yaml:"initial"`
	// Strict selects no-drop delivery, for loops on a control path where
	// a missed looped-back value could skip a state transition.
	Strict bool `yaml:"strict"`
}

type feedbackBuilder struct{}

func init() { Register("feedback", feedbackBuilder{}) }

func (feedbackBuilder) Build(ctx context.Context, raw any, _ Deps) (IO, error) {
	cfg, ok := raw.(FeedbackConfig)
	if !ok {
		return IO{}, fmt.Errorf("module feedback: unexpected config type %T", raw)
	}

	var in port.InputKind
	var out port.OutputKind
	switch cfg.Kind {
	case "", "Float":
		var initial float64
		switch t := cfg.Initial.(type) {
		case float64:
			initial = t
		case int:
			initial = float64(t)
		}
		f := feedback.New(initial, cfg.Strict)
		in, out = port.WrapFloatInput(f.Input()), port.WrapFloatOutput(f.Output())
	case "Bool":
		initial, _ := cfg.Initial.(bool)
		f := feedback.New(initial, cfg.Strict)
		in, out = port.WrapBoolInput(f.Input()), port.WrapBoolOutput(f.Output())
	case "String":
		initial, _ := cfg.Initial.(string)
		f := feedback.New(initial, cfg.Strict)
		in, out = port.WrapStringInput(f.Input()), port.WrapStringOutput(f.Output())
	case "Binary":
		f := feedback.New[[]byte](nil, cfg.Strict)
		in, out = port.WrapBinaryInput(f.Input()), port.WrapBinaryOutput(f.Output())
	case "Array":
		f := feedback.New[[]port.Value](nil, cfg.Strict)
		in, out = port.WrapArrayInput(f.Input()), port.WrapArrayOutput(f.Output())
	case "Object":
		f := feedback.New[map[string]port.Value](nil, cfg.Strict)
		in, out = port.WrapObjectInput(f.Input()), port.WrapObjectOutput(f.Output())
	default:
		return IO{}, fmt.Errorf("module feedback: unknown kind %q", cfg.Kind)
	}

	// A feedback cell has no task of its own; it lives as long as the
	// ports referencing it do.
	return IO{
		Inputs:  map[string]port.InputKind{"value": in},
		Outputs: map[string]port.OutputKind{"value": out},
	}, nil
}
