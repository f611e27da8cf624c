// Package server implements the browser state server (C6: authoritative
// input/output state with filtered fan-out; C7: WebSocket and MJPEG wire
// endpoints) and registers itself as a module whose knobs are
// Inputs and whose telemetry slots are Outputs: the server is both a
// participant in the graph and its HTTP surface.
package server

import (
	"math"
	"unicode/utf8"

	"iocgo/internal/port"
)

// slot is the state server's uniform view over one named input or output
// port, regardless of its concrete Go element type. It lets State apply
// client Update commands and serve JSON snapshots without a type switch
// at every call site; the concrete per-kind implementations below do the
// one-time type assertion instead.
type slot interface {
	Kind() port.Kind
	Value() port.Value
	// TryApply validates and (for Float/String) normalizes an incoming
	// Value, publishing it only if it differs from the current latest
	// value. ok is false on a kind mismatch; changed is false when the
	// value coalesced with the current one.
	TryApply(v port.Value) (ok, changed bool)
	AsInputKind() port.InputKind
	AsOutputKind() port.OutputKind
}

// InputSpec configures one server Input (a client-writable knob): its
// kind, initial value, and (Float/String only) validation metadata.
type InputSpec struct {
	Name      string
	Kind      port.Kind
	Initial   port.Value
	Min       *float64
	Max       *float64
	MaxLength *int
}

// OutputSpec configures one server Output (a telemetry slot the rest of
// the graph writes into and clients observe read-only).
type OutputSpec struct {
	Name    string
	Kind    port.Kind
	Initial port.Value
}

func newSlot(kind port.Kind, initial port.Value, min, max *float64, maxLen *int) slot {
	switch kind {
	case port.KindFloat:
		return &floatSlot{ch: port.NewChannel(initial.Float, false), min: min, max: max}
	case port.KindBool:
		return &boolSlot{ch: port.NewChannel(initial.Bool, false)}
	case port.KindString:
		return &stringSlot{ch: port.NewChannel(initial.Str, false), maxLen: maxLen}
	case port.KindBinary:
		return &binarySlot{ch: port.NewChannel(initial.Bin, false)}
	case port.KindArray:
		return &arraySlot{ch: port.NewChannel(initial.Arr, false)}
	default:
		return &objectSlot{ch: port.NewChannel(initial.Obj, false)}
	}
}

type floatSlot struct {
	ch       *port.Channel[float64]
	min, max *float64
}

func (s *floatSlot) Kind() port.Kind               { return port.KindFloat }
func (s *floatSlot) Value() port.Value             { return port.FloatValue(s.ch.Latest()) }
func (s *floatSlot) AsInputKind() port.InputKind   { return port.WrapFloatInput(s.ch) }
func (s *floatSlot) AsOutputKind() port.OutputKind { return port.WrapFloatOutput(s.ch) }
func (s *floatSlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindFloat {
		return false, false
	}
	x := v.Float
	if s.min != nil {
		x = math.Max(*s.min, x)
	}
	if s.max != nil {
		x = math.Min(*s.max, x)
	}
	if x == s.ch.Latest() {
		return true, false
	}
	s.ch.Publish(x)
	return true, true
}

type boolSlot struct{ ch *port.Channel[bool] }

func (s *boolSlot) Kind() port.Kind               { return port.KindBool }
func (s *boolSlot) Value() port.Value             { return port.BoolValue(s.ch.Latest()) }
func (s *boolSlot) AsInputKind() port.InputKind   { return port.WrapBoolInput(s.ch) }
func (s *boolSlot) AsOutputKind() port.OutputKind { return port.WrapBoolOutput(s.ch) }
func (s *boolSlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindBool {
		return false, false
	}
	if v.Bool == s.ch.Latest() {
		return true, false
	}
	s.ch.Publish(v.Bool)
	return true, true
}

type stringSlot struct {
	ch     *port.Channel[string]
	maxLen *int
}

func (s *stringSlot) Kind() port.Kind               { return port.KindString }
func (s *stringSlot) Value() port.Value             { return port.StringValue(s.ch.Latest()) }
func (s *stringSlot) AsInputKind() port.InputKind   { return port.WrapStringInput(s.ch) }
func (s *stringSlot) AsOutputKind() port.OutputKind { return port.WrapStringOutput(s.ch) }
func (s *stringSlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindString {
		return false, false
	}
	str := v.Str
	if s.maxLen != nil && utf8.RuneCountInString(str) > *s.maxLen {
		r := []rune(str)
		str = string(r[:*s.maxLen])
	}
	if str == s.ch.Latest() {
		return true, false
	}
	s.ch.Publish(str)
	return true, true
}

type binarySlot struct{ ch *port.Channel[[]byte] }

func (s *binarySlot) Kind() port.Kind               { return port.KindBinary }
func (s *binarySlot) Value() port.Value             { return port.BinaryValue(s.ch.Latest()) }
func (s *binarySlot) AsInputKind() port.InputKind   { return port.WrapBinaryInput(s.ch) }
func (s *binarySlot) AsOutputKind() port.OutputKind { return port.WrapBinaryOutput(s.ch) }
func (s *binarySlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindBinary {
		return false, false
	}
	cur := port.BinaryValue(s.ch.Latest())
	if cur.Equal(v) {
		return true, false
	}
	s.ch.Publish(v.Bin)
	return true, true
}

type arraySlot struct{ ch *port.Channel[[]port.Value] }

func (s *arraySlot) Kind() port.Kind               { return port.KindArray }
func (s *arraySlot) Value() port.Value             { return port.ArrayValue(s.ch.Latest()) }
func (s *arraySlot) AsInputKind() port.InputKind   { return port.WrapArrayInput(s.ch) }
func (s *arraySlot) AsOutputKind() port.OutputKind { return port.WrapArrayOutput(s.ch) }
func (s *arraySlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindArray {
		return false, false
	}
	cur := port.ArrayValue(s.ch.Latest())
	if cur.Equal(v) {
		return true, false
	}
	s.ch.Publish(v.Arr)
	return true, true
}

type objectSlot struct {
	ch *port.Channel[map[string]port.Value]
}

func (s *objectSlot) Kind() port.Kind               { return port.KindObject }
func (s *objectSlot) Value() port.Value             { return port.ObjectValue(s.ch.Latest()) }
func (s *objectSlot) AsInputKind() port.InputKind   { return port.WrapObjectInput(s.ch) }
func (s *objectSlot) AsOutputKind() port.OutputKind { return port.WrapObjectOutput(s.ch) }
func (s *objectSlot) TryApply(v port.Value) (bool, bool) {
	if v.Kind != port.KindObject {
		return false, false
	}
	cur := port.ObjectValue(s.ch.Latest())
	if cur.Equal(v) {
		return true, false
	}
	s.ch.Publish(v.Obj)
	return true, true
}
