// Package feedback implements the loopback node used to break a logical
// cycle in the signal graph: a single cell that presents as both an Input
// and an Output of the same kind, so a value written on the Output side is
// immediately the Input side's new latest value.
package feedback

import "iocgo/internal/port"

// Feedback wraps a single *port.Channel[T]: since Channel already
// implements both Input[T] and Output[T] over one underlying cell, a
// feedback node needs no extra machinery beyond exposing both faces under
// one name.
type Feedback[T any] struct {
	cell *port.Channel[T]
}

// New creates a feedback node seeded with an initial value. strict mirrors
// the Channel strict/lossy choice and should match how the feedback is
// used downstream (e.g. strict if a transformer step must not miss a
// looped-back value).
func New[T any](initial T, strict bool) *Feedback[T] {
	return &Feedback[T]{cell: port.NewChannel(initial, strict)}
}

func (f *Feedback[T]) Input() port.Input[T]   { return f.cell }
func (f *Feedback[T]) Output() port.Output[T] { return f.cell }

// NewFloatKind builds a Float feedback node already wrapped for the graph
// namespace; NewBoolKind does the same for Bool.
func NewFloatKind(initial float64, strict bool) (*Feedback[float64], port.InputKind, port.OutputKind) {
	f := New(initial, strict)
	return f, port.WrapFloatInput(f.Input()), port.WrapFloatOutput(f.Output())
}

func NewBoolKind(initial bool, strict bool) (*Feedback[bool], port.InputKind, port.OutputKind) {
	f := New(initial, strict)
	return f, port.WrapBoolInput(f.Input()), port.WrapBoolOutput(f.Output())
}
