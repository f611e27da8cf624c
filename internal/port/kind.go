package port

// InputKind is a tagged union over Input[T] for each port kind. The graph
// builder stores these in its flat namespace and type-checks pipe/
// transformer wiring by comparing Kind tags rather than dynamic dispatch.
type InputKind struct {
	Kind   Kind
	Float  Input[float64]
	Bool   Input[bool]
	String Input[string]
	Binary Input[[]byte]
	Array  Input[[]Value]
	Object Input[map[string]Value]
}

func WrapFloatInput(i Input[float64]) InputKind { return InputKind{Kind: KindFloat, Float: i} }
func WrapBoolInput(i Input[bool]) InputKind     { return InputKind{Kind: KindBool, Bool: i} }
func WrapStringInput(i Input[string]) InputKind { return InputKind{Kind: KindString, String: i} }
func WrapBinaryInput(i Input[[]byte]) InputKind { return InputKind{Kind: KindBinary, Binary: i} }
func WrapArrayInput(i Input[[]Value]) InputKind { return InputKind{Kind: KindArray, Array: i} }
func WrapObjectInput(i Input[map[string]Value]) InputKind {
	return InputKind{Kind: KindObject, Object: i}
}

// Value reads the current latest value of the wrapped Input as a generic
// Value, regardless of its concrete kind. Used by the server state machine
// and the WebSocket wire encoder.
func (k InputKind) Value() Value {
	switch k.Kind {
	case KindFloat:
		return FloatValue(k.Float.Latest())
	case KindBool:
		return BoolValue(k.Bool.Latest())
	case KindString:
		return StringValue(k.String.Latest())
	case KindBinary:
		return BinaryValue(k.Binary.Latest())
	case KindArray:
		return ArrayValue(k.Array.Latest())
	case KindObject:
		return ObjectValue(k.Object.Latest())
	default:
		return Value{}
	}
}

// OutputKind is the Output-side counterpart of InputKind.
type OutputKind struct {
	Kind   Kind
	Float  Output[float64]
	Bool   Output[bool]
	String Output[string]
	Binary Output[[]byte]
	Array  Output[[]Value]
	Object Output[map[string]Value]
}

func WrapFloatOutput(o Output[float64]) OutputKind { return OutputKind{Kind: KindFloat, Float: o} }
func WrapBoolOutput(o Output[bool]) OutputKind     { return OutputKind{Kind: KindBool, Bool: o} }
func WrapStringOutput(o Output[string]) OutputKind {
	return OutputKind{Kind: KindString, String: o}
}
func WrapBinaryOutput(o Output[[]byte]) OutputKind {
	return OutputKind{Kind: KindBinary, Binary: o}
}
func WrapArrayOutput(o Output[[]Value]) OutputKind { return OutputKind{Kind: KindArray, Array: o} }
func WrapObjectOutput(o Output[map[string]Value]) OutputKind {
	return OutputKind{Kind: KindObject, Object: o}
}

// Send writes a generic Value into the wrapped Output, returning false on a
// kind mismatch so callers (the server state machine, pipe construction)
// can reject it per-key instead of panicking.
func (k OutputKind) Send(v Value) bool {
	if v.Kind != k.Kind {
		return false
	}
	switch k.Kind {
	case KindFloat:
		k.Float.Send(v.Float)
	case KindBool:
		k.Bool.Send(v.Bool)
	case KindString:
		k.String.Send(v.Str)
	case KindBinary:
		k.Binary.Send(v.Bin)
	case KindArray:
		k.Array.Send(v.Arr)
	case KindObject:
		k.Object.Send(v.Obj)
	default:
		return false
	}
	return true
}

// NewFloatChannel builds a *Channel[float64] and returns it both as the
// concrete type (for the owner to Publish on) and wrapped as an InputKind
// (for the namespace), so callers rarely need the Wrap* helpers directly.
// NewBoolChannel, NewStringChannel and NewBinaryChannel do the same for
// their kinds.
func NewFloatChannel(initial float64, strict bool) (*Channel[float64], InputKind) {
	c := NewChannel(initial, strict)
	return c, WrapFloatInput(c)
}

func NewBoolChannel(initial bool, strict bool) (*Channel[bool], InputKind) {
	c := NewChannel(initial, strict)
	return c, WrapBoolInput(c)
}

func NewStringChannel(initial string, strict bool) (*Channel[string], InputKind) {
	c := NewChannel(initial, strict)
	return c, WrapStringInput(c)
}

func NewBinaryChannel(initial []byte, strict bool) (*Channel[[]byte], InputKind) {
	c := NewChannel(initial, strict)
	return c, WrapBinaryInput(c)
}
