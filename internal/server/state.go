package server

import (
	"context"
	"sort"
	"strings"

	"iocgo/internal/port"
)

// StateUpdate carries the subset of inputs/outputs that changed (or, for
// an initial snapshot, the full requested subset), keyed by name.
type StateUpdate struct {
	Inputs  map[string]port.Value
	Outputs map[string]port.Value
}

func (u StateUpdate) empty() bool { return len(u.Inputs) == 0 && len(u.Outputs) == 0 }

type registeredSub struct {
	inputs  map[string]bool
	outputs map[string]bool
	bus     *port.Channel[StateUpdate]
	refs    int
}

// State is the server's single-owner authoritative state machine:
// all mutation funnels through one command queue run by one goroutine, so
// no explicit locking is needed anywhere else in this package: a
// buffered command channel drained by one goroutine, with named
// input/output state and per-subscription filtering.
type State struct {
	inputs  map[string]slot
	outputs map[string]slot
	meta    map[string]InputSpec

	subs map[string]*registeredSub
	cmds chan func()
	done chan struct{}
}

// NewState builds the slots described by inputSpecs/outputSpecs and starts
// the command-processing actor. The returned State is a module in its own
// right (see module.go): its inputs are exposed as module Inputs (clients
// write them, the graph reads them); its outputs are exposed as module
// Outputs (the graph writes them, clients read them).
func NewState(ctx context.Context, inputSpecs []InputSpec, outputSpecs []OutputSpec) *State {
	s := &State{
		inputs:  make(map[string]slot, len(inputSpecs)),
		outputs: make(map[string]slot, len(outputSpecs)),
		meta:    make(map[string]InputSpec, len(inputSpecs)),
		subs:    make(map[string]*registeredSub),
		cmds:    make(chan func(), 64),
		done:    make(chan struct{}),
	}
	for _, spec := range inputSpecs {
		s.inputs[spec.Name] = newSlot(spec.Kind, spec.Initial, spec.Min, spec.Max, spec.MaxLength)
		s.meta[spec.Name] = spec
	}
	for _, spec := range outputSpecs {
		s.outputs[spec.Name] = newSlot(spec.Kind, spec.Initial, nil, nil, nil)
	}

	go s.run(ctx)
	for name, sl := range s.outputs {
		go s.watchOutput(ctx, name, sl)
	}
	return s
}

func (s *State) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

// exec runs fn inside the actor goroutine and waits for it to complete,
// giving callers (the WebSocket handlers, watchOutput) a synchronous,
// data-race-free view of state. If ctx is already done the actor has
// exited and exec is a no-op.
func (s *State) exec(ctx context.Context, fn func()) {
	reply := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(reply) }:
	case <-ctx.Done():
		return
	case <-s.done:
		return
	}
	select {
	case <-reply:
	case <-s.done:
	}
}

// Update applies a client-originated batch of input writes (WebSocket
// endpoints are the only caller). Unknown keys are ignored; a type
// mismatch rejects only that key. Values are validated/normalized and
// coalesced per slot.TryApply before publishing and broadcasting.
func (s *State) Update(ctx context.Context, values map[string]port.Value) {
	s.exec(ctx, func() {
		changed := make(map[string]port.Value)
		for name, v := range values {
			sl, ok := s.inputs[name]
			if !ok {
				continue
			}
			_, didChange := sl.TryApply(v)
			if didChange {
				changed[name] = sl.Value()
			}
		}
		if len(changed) > 0 {
			s.broadcast(StateUpdate{Inputs: changed})
		}
	})
}

// watchOutput is written directly by the rest of the graph through the
// OutputKind the module exposes; this loop just mirrors every change
// into the broadcast fan-out so WebSocket subscribers see it too.
func (s *State) watchOutput(ctx context.Context, name string, sl slot) {
	switch sl.Kind() {
	case port.KindFloat:
		watchTyped(ctx, s, name, sl.(*floatSlot).ch, port.FloatValue)
	case port.KindBool:
		watchTyped(ctx, s, name, sl.(*boolSlot).ch, port.BoolValue)
	case port.KindString:
		watchTyped(ctx, s, name, sl.(*stringSlot).ch, port.StringValue)
	case port.KindBinary:
		watchTyped(ctx, s, name, sl.(*binarySlot).ch, port.BinaryValue)
	case port.KindArray:
		watchTyped(ctx, s, name, sl.(*arraySlot).ch, port.ArrayValue)
	case port.KindObject:
		watchTyped(ctx, s, name, sl.(*objectSlot).ch, port.ObjectValue)
	}
}

// watchTyped subscribes to one concretely-typed output channel and
// forwards every change into the actor's broadcast, converting it to a
// generic Value at the boundary.
func watchTyped[T any](ctx context.Context, s *State, name string, ch *port.Channel[T], toValue func(T) port.Value) {
	sub := ch.Source()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.Updates:
			if !ok {
				return
			}
			s.exec(ctx, func() {
				s.broadcast(StateUpdate{Outputs: map[string]port.Value{name: toValue(v)}})
			})
		}
	}
}

// Subscribe registers (or joins, by dedup key) a filtered view over the
// requested input/output names, returning the initial filtered snapshot
// and an open subscription for subsequent diffs. release must be called
// exactly once when the caller is done.
func (s *State) Subscribe(ctx context.Context, inputNames, outputNames []string) (StateUpdate, *port.Subscription[StateUpdate], func()) {
	key := subscriptionKey(inputNames, outputNames)
	var initial StateUpdate
	var sub *port.Subscription[StateUpdate]

	s.exec(ctx, func() {
		reg, ok := s.subs[key]
		if !ok {
			reg = &registeredSub{
				inputs:  toSet(inputNames),
				outputs: toSet(outputNames),
				bus:     port.NewChannel(StateUpdate{}, false),
			}
			s.subs[key] = reg
		}
		reg.refs++

		initial = StateUpdate{Inputs: map[string]port.Value{}, Outputs: map[string]port.Value{}}
		for name := range reg.inputs {
			if sl, ok := s.inputs[name]; ok {
				initial.Inputs[name] = sl.Value()
			}
		}
		for name := range reg.outputs {
			if sl, ok := s.outputs[name]; ok {
				initial.Outputs[name] = sl.Value()
			}
		}
		sub = reg.bus.Source()
	})
	if sub == nil {
		// Actor already gone (shutdown race): hand back an empty,
		// closed subscription so callers need no nil checks.
		ch := make(chan StateUpdate)
		close(ch)
		sub = &port.Subscription[StateUpdate]{Updates: ch}
	}

	release := func() {
		s.exec(ctx, func() {
			reg, ok := s.subs[key]
			if !ok {
				return
			}
			reg.refs--
			if reg.refs <= 0 {
				delete(s.subs, key)
				reg.bus.Close()
			}
		})
		sub.Close()
	}
	return initial, sub, release
}

// broadcast must run inside the actor goroutine: it has no lock of its
// own, relying on the single-owner command loop for exclusion.
func (s *State) broadcast(upd StateUpdate) {
	for _, reg := range s.subs {
		filtered := StateUpdate{}
		for name, v := range upd.Inputs {
			if reg.inputs[name] {
				if filtered.Inputs == nil {
					filtered.Inputs = map[string]port.Value{}
				}
				filtered.Inputs[name] = v
			}
		}
		for name, v := range upd.Outputs {
			if reg.outputs[name] {
				if filtered.Outputs == nil {
					filtered.Outputs = map[string]port.Value{}
				}
				filtered.Outputs[name] = v
			}
		}
		if !filtered.empty() {
			reg.bus.Publish(filtered)
		}
	}
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func subscriptionKey(inputs, outputs []string) string {
	in := append([]string(nil), inputs...)
	out := append([]string(nil), outputs...)
	sort.Strings(in)
	sort.Strings(out)
	return "in:" + strings.Join(in, ",") + "|out:" + strings.Join(out, ",")
}
