// Package graph implements the declarative graph builder:
// it instantiates every configured module, resolves transformers
// iteratively as their upstream inputs appear in the namespace, then
// connects pipes, reporting structured diagnostics for anything that
// cannot be wired. Modules are constructed by type tag from their
// decoded config blocks, failing fast with the offending component's
// name; a fixed-point dependency pass lets transformer chains resolve
// in any declared order.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"iocgo/internal/builderr"
	"iocgo/internal/config"
	"iocgo/internal/ioclog"
	"iocgo/internal/module"
	"iocgo/internal/pipe"
	"iocgo/internal/port"
	"iocgo/internal/server"
	"iocgo/internal/transform"
)

// Built is the result of a successful graph build: the flat dotted-name
// namespace and the set of task completion channels to supervise.
type Built struct {
	Meta    config.Metadata
	Inputs  map[string]port.InputKind
	Outputs map[string]port.OutputKind
	dones   []<-chan struct{}
}

// Dones returns the completion channel of every spawned task (module
// drivers, transformer loops, pipes). Modules without a task of their own
// (feedback cells) contribute nothing.
func (b *Built) Dones() []<-chan struct{} { return b.dones }

func decodeModuleParams(typeTag string, params yaml.Node) (any, error) {
	switch typeTag {
	case "noise":
		return config.DecodeInto[module.NoiseConfig](params)
	case "gpio":
		return config.DecodeInto[module.GPIOConfig](params)
	case "servo":
		return config.DecodeInto[module.ServoConfig](params)
	case "pwmchip":
		return config.DecodeInto[module.PWMChipConfig](params)
	case "camera":
		return config.DecodeInto[module.CameraConfig](params)
	case "feedback":
		return config.DecodeInto[module.FeedbackConfig](params)
	case "server":
		return config.DecodeInto[server.Config](params)
	default:
		return nil, fmt.Errorf("unknown module type %q", typeTag)
	}
}

func decodeTransformer(typeTag string, params yaml.Node) (transform.Config, error) {
	switch typeTag {
	case "sum":
		return config.DecodeInto[transform.SumConfig](params)
	case "linear_transform":
		return config.DecodeInto[transform.LinearConfig](params)
	case "clamp":
		return config.DecodeInto[transform.ClampConfig](params)
	case "heading":
		return config.DecodeInto[transform.HeadingConfig](params)
	case "window_average":
		return config.DecodeInto[transform.WindowAverageConfig](params)
	case "limiter":
		return config.DecodeInto[transform.LimiterConfig](params)
	case "pid":
		return config.DecodeInto[transform.PIDConfig](params)
	case "hbridge":
		return config.DecodeInto[transform.HBridgeConfig](params)
	default:
		return nil, fmt.Errorf("unknown transformer type %q", typeTag)
	}
}

// Build runs the three construction phases over a parsed graph file. All
// errors are build-phase fatal and carry the failing component's name.
func Build(ctx context.Context, g *config.Graph, deps module.Deps) (*Built, error) {
	log := ioclog.For("graph")
	b := &Built{
		Meta:    g.Metadata,
		Inputs:  make(map[string]port.InputKind),
		Outputs: make(map[string]port.OutputKind),
	}

	// Phase 1: modules, in config order.
	for _, entry := range g.Modules {
		mb, ok := module.Lookup(entry.Type)
		if !ok {
			return nil, builderr.New(builderr.ModuleBuild, entry.Name, "unknown module type %q", entry.Type)
		}
		params, err := decodeModuleParams(entry.Type, entry.Params)
		if err != nil {
			return nil, builderr.Wrap(builderr.ModuleBuild, entry.Name, err)
		}
		io, err := mb.Build(ctx, params, deps)
		if err != nil {
			return nil, builderr.Wrap(builderr.ModuleBuild, entry.Name, err)
		}
		for pname, ik := range io.Inputs {
			b.Inputs[entry.Name+"."+pname] = ik
		}
		for pname, okind := range io.Outputs {
			b.Outputs[entry.Name+"."+pname] = okind
		}
		if io.Done != nil {
			b.dones = append(b.dones, io.Done)
		}
		log.WithField("module", entry.Name).WithField("type", entry.Type).Debug("module built")
	}

	// Phase 2: transformers, by iterative dependency resolution. Each
	// pass builds every transformer whose needed inputs are all present;
	// a pass that builds nothing while work remains means the rest can
	// never be satisfied (typo, missing module, or a cycle not broken by
	// a feedback node) and fails with the full missing-input listing.
	remaining := make(map[string]transform.Config, len(g.Transformers))
	for _, entry := range g.Transformers {
		cfg, err := decodeTransformer(entry.Type, entry.Params)
		if err != nil {
			return nil, builderr.Wrap(builderr.TransformerConfig, entry.Name, err)
		}
		remaining[entry.Name] = cfg
	}
	lookup := func(name string) (port.InputKind, bool) {
		ik, ok := b.Inputs[name]
		return ik, ok
	}
	for len(remaining) > 0 {
		built := 0
		// Deterministic pass order keeps diagnostics stable.
		names := make([]string, 0, len(remaining))
		for name := range remaining {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cfg := remaining[name]
			if !inputsSatisfied(cfg, b.Inputs) {
				continue
			}
			outs, done, err := cfg.Build(ctx, lookup)
			if err != nil {
				return nil, builderr.Wrap(builderr.TransformerConfig, name, err)
			}
			for pname, ik := range outs {
				b.Inputs[name+"."+pname] = ik
			}
			if done != nil {
				b.dones = append(b.dones, done)
			}
			delete(remaining, name)
			built++
			log.WithField("transformer", name).Debug("transformer built")
		}
		if built == 0 {
			return nil, starvationError(remaining, b.Inputs)
		}
	}

	// Phase 3: pipes.
	for _, p := range g.Pipes {
		in, ok := b.Inputs[p.From]
		if !ok {
			return nil, builderr.New(builderr.PipeMissingEnd, p.From,
				"pipe %s -> %s: input %q not in namespace", p.From, p.To, p.From)
		}
		out, ok := b.Outputs[p.To]
		if !ok {
			return nil, builderr.New(builderr.PipeMissingEnd, p.To,
				"pipe %s -> %s: output %q not in namespace", p.From, p.To, p.To)
		}
		done, ok := pipe.RunKind(ctx, in, out)
		if !ok {
			return nil, builderr.New(builderr.PipeKindMismatch, p.From,
				"pipe %s (%s) -> %s (%s): kinds differ", p.From, in.Kind, p.To, out.Kind)
		}
		b.dones = append(b.dones, done)
	}

	log.WithField("inputs", len(b.Inputs)).
		WithField("outputs", len(b.Outputs)).
		WithField("tasks", len(b.dones)).
		Info("graph built")
	return b, nil
}

func inputsSatisfied(cfg transform.Config, inputs map[string]port.InputKind) bool {
	for _, need := range cfg.NeedsInputs() {
		if _, ok := inputs[need]; !ok {
			return false
		}
	}
	return true
}

// starvationError lists, per unbuilt transformer, the inputs it requires
// that never appeared in the namespace. This is the user-facing
// diagnostic for typos, missing modules, and unbroken cycles.
func starvationError(remaining map[string]transform.Config, inputs map[string]port.InputKind) error {
	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("cannot resolve transformer dependencies:")
	for _, name := range names {
		var missing []string
		for _, need := range remaining[name].NeedsInputs() {
			if _, ok := inputs[need]; !ok {
				missing = append(missing, need)
			}
		}
		sort.Strings(missing)
		fmt.Fprintf(&sb, "\n  %s is missing inputs: %s", name, strings.Join(missing, ", "))
	}
	return builderr.New(builderr.TransformerStarved, strings.Join(names, ","), "%s", sb.String())
}
