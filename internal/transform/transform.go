// Package transform implements the derived-Input producers: Sum,
// LinearTransform, Clamp, Function (heading), WindowAverage, Limiter, PID
// and HBridge. Each Config type is a tagged-union member decoded from the
// graph configuration file; NeedsInputs names the upstream dotted ports it
// depends on (used by the graph builder's iterative fixed-point
// resolution), and Build spawns the transformer's task and returns the
// Inputs it publishes.
package transform

import (
	"context"
	"sync"

	"iocgo/internal/port"
)

// Lookup resolves a dotted upstream name to its InputKind, as exposed by
// the graph builder's namespace.
type Lookup func(name string) (port.InputKind, bool)

// Config is the shared transformer contract.
// NeedsInputs is purely a function of configuration, independent of
// build order, so the builder can call it before any transformer in the
// pass has been constructed. Build returns the Inputs the transformer
// publishes plus the completion channel of its internal task, joined by
// the runtime supervisor.
type Config interface {
	NeedsInputs() []string
	Build(ctx context.Context, lookup Lookup) (map[string]port.InputKind, <-chan struct{}, error)
}

// watch forwards a wake signal on every change observed on in, until ctx
// is cancelled or the upstream closes (at which point it returns, letting
// the caller's watchGroup know this upstream is done).
func watch[T any](ctx context.Context, in port.Input[T], wake chan<- struct{}) {
	sub := in.Source()
	defer sub.Close()
	for {
		select {
		case _, ok := <-sub.Updates:
			if !ok {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case <-ctx.Done():
			return
		}
	}
}

// watchGroup runs watchers concurrently and closes the returned channel
// once every one of them has returned (all upstreams closed, or ctx
// cancelled).
func watchGroup(watchers ...func()) <-chan struct{} {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(watchers))
	for _, w := range watchers {
		w := w
		go func() {
			defer wg.Done()
			w()
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}
