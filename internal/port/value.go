// Package port implements the typed signal-graph primitives: latest-value
// ports with change notification (Input/Output), and the tagged-kind
// wrappers the graph builder uses to type-check pipes at wiring time.
//
// Fan-out delivery on a non-strict port is try-send-then-drop-oldest over
// one bounded channel per subscriber: a slow subscriber loses intermediate
// values but always converges on the latest one. A strict port queues
// every value per subscriber instead of dropping.
package port

import "fmt"

// Kind discriminates the element type carried by a port: a tagged
// variant instead of dynamic dispatch.
type Kind uint8

const (
	KindFloat Kind = iota
	KindBool
	KindString
	KindBinary
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindBinary:
		return "Binary"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Value is a dynamically-kinded scalar or container, used at the edges of
// the graph (server state, wire protocol) where a port's element type is
// not known until runtime. Only one field is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Float float64
	Bool  bool
	Str   string
	Bin   []byte
	Arr   []Value
	Obj   map[string]Value
}

func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BinaryValue(b []byte) Value { return Value{Kind: KindBinary, Bin: b} }
func ArrayValue(a []Value) Value { return Value{Kind: KindArray, Arr: a} }
func ObjectValue(o map[string]Value) Value {
	return Value{Kind: KindObject, Obj: o}
}

// Equal reports whether two Values carry the same kind and payload. Used by
// the server state machine to decide whether an Update actually changes
// anything (coalescing).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFloat:
		return v.Float == o.Float
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindBinary:
		return string(v.Bin) == string(o.Bin)
	case KindArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Obj) != len(o.Obj) {
			return false
		}
		for k, vv := range v.Obj {
			ov, ok := o.Obj[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindString:
		return v.Str
	case KindBinary:
		return fmt.Sprintf("<%d bytes>", len(v.Bin))
	case KindArray:
		return fmt.Sprintf("%v", v.Arr)
	case KindObject:
		return fmt.Sprintf("%v", v.Obj)
	default:
		return "<invalid>"
	}
}
