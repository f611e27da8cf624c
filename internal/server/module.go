package server

import (
	"context"
	"fmt"

	"iocgo/internal/module"
	"iocgo/internal/port"
)

// Config is the server module's declarative configuration: the named
// inputs/outputs it exposes, and the WebSocket/MJPEG/static endpoints it
// serves them through.
type Config struct {
	Addr      string             `yaml:"addr"`
	Inputs    []InputSpecConfig  `yaml:"inputs"`
	Outputs   []OutputSpecConfig `yaml:"outputs"`
	WebSocket []WebSocketConfig  `yaml:"websocket"`
	MJPEG     []MJPEGConfig      `yaml:"mjpeg"`
	Static    *StaticConfig      `yaml:"static"`
}

type InputSpecConfig struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Initial   any      `yaml:"initial"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	MaxLength *int     `yaml:"max_length"`
}

type OutputSpecConfig struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Initial any    `yaml:"initial"`
}

func parseKind(s string) (port.Kind, error) {
	switch s {
	case "Float":
		return port.KindFloat, nil
	case "Bool":
		return port.KindBool, nil
	case "String":
		return port.KindString, nil
	case "Binary":
		return port.KindBinary, nil
	case "Array":
		return port.KindArray, nil
	case "Object":
		return port.KindObject, nil
	default:
		return 0, fmt.Errorf("unknown port kind %q", s)
	}
}

// asFloat widens the numeric types a YAML decoder may hand back for an
// untyped scalar.
func asFloat(raw any) (float64, bool) {
	switch t := raw.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func initialValue(kind port.Kind, raw any) port.Value {
	switch kind {
	case port.KindFloat:
		f, _ := asFloat(raw)
		return port.FloatValue(f)
	case port.KindBool:
		b, _ := raw.(bool)
		return port.BoolValue(b)
	case port.KindString:
		str, _ := raw.(string)
		return port.StringValue(str)
	case port.KindBinary:
		return port.BinaryValue(nil)
	case port.KindArray:
		return port.ArrayValue(nil)
	default:
		return port.ObjectValue(nil)
	}
}

type serverBuilder struct{}

func init() { module.Register("server", serverBuilder{}) }

func (serverBuilder) Build(ctx context.Context, raw any, _ module.Deps) (module.IO, error) {
	cfg, ok := raw.(Config)
	if !ok {
		return module.IO{}, fmt.Errorf("module server: unexpected config type %T", raw)
	}

	inputSpecs := make([]InputSpec, 0, len(cfg.Inputs))
	for _, ic := range cfg.Inputs {
		kind, err := parseKind(ic.Kind)
		if err != nil {
			return module.IO{}, fmt.Errorf("module server: input %q: %w", ic.Name, err)
		}
		inputSpecs = append(inputSpecs, InputSpec{
			Name: ic.Name, Kind: kind, Initial: initialValue(kind, ic.Initial),
			Min: ic.Min, Max: ic.Max, MaxLength: ic.MaxLength,
		})
	}
	outputSpecs := make([]OutputSpec, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		kind, err := parseKind(oc.Kind)
		if err != nil {
			return module.IO{}, fmt.Errorf("module server: output %q: %w", oc.Name, err)
		}
		outputSpecs = append(outputSpecs, OutputSpec{Name: oc.Name, Kind: kind, Initial: initialValue(kind, oc.Initial)})
	}

	state := NewState(ctx, inputSpecs, outputSpecs)

	done := make(chan struct{})
	srv, err := newHTTPServer(ctx, cfg, state)
	if err != nil {
		return module.IO{}, fmt.Errorf("module server: %w", err)
	}
	go func() {
		defer close(done)
		runHTTPServer(ctx, srv)
	}()

	inputs := make(map[string]port.InputKind, len(state.inputs))
	for name, sl := range state.inputs {
		inputs[name] = sl.AsInputKind()
	}
	outputs := make(map[string]port.OutputKind, len(state.outputs))
	for name, sl := range state.outputs {
		outputs[name] = sl.AsOutputKind()
	}

	return module.IO{Inputs: inputs, Outputs: outputs, Done: done}, nil
}
