// Package pipe implements the 1:1 forwarding connector between an Input
// and an Output of matching kind.
package pipe

import (
	"context"

	"iocgo/internal/port"
)

// Run spawns the forwarding task for a single typed pipe: it sends the
// input's current latest value immediately, then forwards every later
// change. It exits cleanly (closing done) when the input closes or ctx is
// cancelled; neither condition is fatal to the rest of the graph. A closed
// output does not end the task: Output has no way to report closure, and
// sends to a closed Channel are discarded.
func Run[T any](ctx context.Context, in port.Input[T], out port.Output[T]) (done <-chan struct{}) {
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		sub := in.Source()
		defer sub.Close()

		out.Send(sub.Start)
		for {
			select {
			case v, ok := <-sub.Updates:
				if !ok {
					return
				}
				out.Send(v)
			case <-ctx.Done():
				return
			}
		}
	}()
	return finished
}

// RunKind wires a pipe between namespace-looked-up ports. It returns false,
// starting nothing, when the two kinds differ; the graph builder reports
// that as a kind mismatch.
func RunKind(ctx context.Context, in port.InputKind, out port.OutputKind) (<-chan struct{}, bool) {
	if in.Kind != out.Kind {
		return nil, false
	}
	switch in.Kind {
	case port.KindFloat:
		return Run(ctx, in.Float, out.Float), true
	case port.KindBool:
		return Run(ctx, in.Bool, out.Bool), true
	case port.KindString:
		return Run(ctx, in.String, out.String), true
	case port.KindBinary:
		return Run(ctx, in.Binary, out.Binary), true
	case port.KindArray:
		return Run(ctx, in.Array, out.Array), true
	case port.KindObject:
		return Run(ctx, in.Object, out.Object), true
	default:
		return nil, false
	}
}
