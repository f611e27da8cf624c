package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"iocgo/internal/port"
)

// The WebSocket wire protocol. Server-to-client messages carry the full
// requested subset (Initial) or just the keys that changed (Update), each
// value tagged with its port kind; input entries additionally carry the
// validation metadata the browser UI needs to render a control. Client-to-
// server messages are a flat name-to-tagged-value map and may only name
// server Inputs.

type wireTimestamp struct {
	Seconds float64 `json:"seconds"`
}

func timestampNow() wireTimestamp {
	return wireTimestamp{Seconds: float64(time.Now().UnixNano()) / 1e9}
}

// wireState is one tagged value on the wire, with optional input
// validation metadata (only present in Initial messages for inputs).
type wireState struct {
	Tag       string   `json:"tag"`
	Value     any      `json:"value"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
}

type wireMessage struct {
	Inputs  map[string]wireState `json:"inputs"`
	Outputs map[string]wireState `json:"outputs"`
	Time    wireTimestamp        `json:"time"`
}

func valueJSON(v port.Value) any {
	switch v.Kind {
	case port.KindFloat:
		return v.Float
	case port.KindBool:
		return v.Bool
	case port.KindString:
		return v.Str
	case port.KindBinary:
		return base64.StdEncoding.EncodeToString(v.Bin)
	case port.KindArray:
		arr := make([]any, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = valueJSON(e)
		}
		return arr
	case port.KindObject:
		obj := make(map[string]any, len(v.Obj))
		for k, e := range v.Obj {
			obj[k] = valueJSON(e)
		}
		return obj
	default:
		return nil
	}
}

func toWireState(v port.Value) wireState {
	return wireState{Tag: v.Kind.String(), Value: valueJSON(v)}
}

// encodeUpdate serializes a StateUpdate diff as an Update message.
func encodeUpdate(upd StateUpdate) ([]byte, error) {
	msg := wireMessage{
		Inputs:  make(map[string]wireState, len(upd.Inputs)),
		Outputs: make(map[string]wireState, len(upd.Outputs)),
		Time:    timestampNow(),
	}
	for name, v := range upd.Inputs {
		msg.Inputs[name] = toWireState(v)
	}
	for name, v := range upd.Outputs {
		msg.Outputs[name] = toWireState(v)
	}
	return json.Marshal(msg)
}

// encodeInitial serializes the full requested subset, decorating each
// input with its validation metadata so the client can build controls.
func encodeInitial(upd StateUpdate, meta map[string]InputSpec) ([]byte, error) {
	msg := wireMessage{
		Inputs:  make(map[string]wireState, len(upd.Inputs)),
		Outputs: make(map[string]wireState, len(upd.Outputs)),
		Time:    timestampNow(),
	}
	for name, v := range upd.Inputs {
		ws := toWireState(v)
		if spec, ok := meta[name]; ok {
			ws.Min, ws.Max, ws.MaxLength = spec.Min, spec.Max, spec.MaxLength
		}
		msg.Inputs[name] = ws
	}
	for name, v := range upd.Outputs {
		msg.Outputs[name] = toWireState(v)
	}
	return json.Marshal(msg)
}

// wireIncoming is one client-originated tagged value.
type wireIncoming struct {
	Tag   string          `json:"tag"`
	Value json.RawMessage `json:"value"`
}

func (w wireIncoming) toValue() (port.Value, error) {
	switch w.Tag {
	case "Float":
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return port.Value{}, err
		}
		return port.FloatValue(f), nil
	case "Bool":
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return port.Value{}, err
		}
		return port.BoolValue(b), nil
	case "String":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return port.Value{}, err
		}
		return port.StringValue(s), nil
	case "Binary":
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return port.Value{}, err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return port.Value{}, err
		}
		return port.BinaryValue(raw), nil
	case "Array":
		var raw []any
		if err := json.Unmarshal(w.Value, &raw); err != nil {
			return port.Value{}, err
		}
		arr := make([]port.Value, len(raw))
		for i, e := range raw {
			arr[i] = anyToValue(e)
		}
		return port.ArrayValue(arr), nil
	case "Object":
		var raw map[string]any
		if err := json.Unmarshal(w.Value, &raw); err != nil {
			return port.Value{}, err
		}
		obj := make(map[string]port.Value, len(raw))
		for k, e := range raw {
			obj[k] = anyToValue(e)
		}
		return port.ObjectValue(obj), nil
	default:
		return port.Value{}, fmt.Errorf("unknown value tag %q", w.Tag)
	}
}

// anyToValue maps a decoded JSON leaf to the closest port.Value; nested
// containers recurse. Untagged numeric leaves inside a container become
// Float, the only scalar numeric kind the graph carries.
func anyToValue(v any) port.Value {
	switch t := v.(type) {
	case float64:
		return port.FloatValue(t)
	case bool:
		return port.BoolValue(t)
	case string:
		return port.StringValue(t)
	case []any:
		arr := make([]port.Value, len(t))
		for i, e := range t {
			arr[i] = anyToValue(e)
		}
		return port.ArrayValue(arr)
	case map[string]any:
		obj := make(map[string]port.Value, len(t))
		for k, e := range t {
			obj[k] = anyToValue(e)
		}
		return port.ObjectValue(obj)
	default:
		return port.FloatValue(0)
	}
}

// decodeClientUpdate parses an inbound client text frame into the values
// to apply to server Inputs. A malformed value for one key fails the whole
// frame (the caller logs and drops it); unknown keys are filtered out
// later by the state machine.
func decodeClientUpdate(data []byte) (map[string]port.Value, error) {
	var raw map[string]wireIncoming
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	values := make(map[string]port.Value, len(raw))
	for name, w := range raw {
		v, err := w.toValue()
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}
