package orchestration

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// ValueKind identifies the type held by a Value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindObject ValueKind = "object"
)

// Value is the closed value type carried by variables, condition operands,
// and hook action payloads. It holds exactly one of: string, number, boolean,
// or structured object. There is no open "any" escape hatch; anything else is
// rejected at unmarshal time.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	obj  map[string]any
}

// StringValue constructs a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue constructs a numeric Value.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// BoolValue constructs a boolean Value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// ObjectValue constructs a structured object Value.
func ObjectValue(obj map[string]any) Value {
	return Value{kind: KindObject, obj: obj}
}

// Kind returns the kind of the held value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsZero reports whether the Value is the zero Value (no kind assigned).
// A zero Value is distinct from an empty string or a zero number.
func (v Value) IsZero() bool {
	return v.kind == ""
}

// AsString returns the string form of the value and whether it is a string.
func (v Value) AsString() (string, bool) {
	if v.kind == KindString {
		return v.str, true
	}
	return "", false
}

// AsNumber coerces the value to a float64. Strings that parse as numbers
// coerce; booleans and objects do not.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		if n, err := strconv.ParseFloat(v.str, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// AsBool returns the boolean form of the value and whether it is a boolean.
func (v Value) AsBool() (bool, bool) {
	if v.kind == KindBool {
		return v.b, true
	}
	return false, false
}

// AsObject returns the object form of the value and whether it is an object.
func (v Value) AsObject() (map[string]any, bool) {
	if v.kind == KindObject {
		return v.obj, true
	}
	return nil, false
}

// Equal reports structural equality between two values. Values of different
// kinds are never equal; there is no implicit coercion here.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindObject:
		return reflect.DeepEqual(v.obj, other.obj)
	}
	return true
}

// Interface returns the value as a plain Go value for logging and reporting.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindObject:
		return v.obj
	}
	return nil
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindObject:
		data, err := json.Marshal(v.obj)
		if err != nil {
			return fmt.Sprintf("%v", v.obj)
		}
		return string(data)
	}
	return "<unset>"
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler. Arrays and null are rejected:
// the wire contract admits only scalars and objects as variable values.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	val, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// FromInterface converts a decoded JSON/YAML value into a Value, rejecting
// anything outside the closed type set.
func FromInterface(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		// Explicit null decodes to the zero Value; validation rejects it
		// wherever a value is required.
		return Value{}, nil
	case string:
		return StringValue(t), nil
	case float64:
		return NumberValue(t), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case bool:
		return BoolValue(t), nil
	case map[string]any:
		return ObjectValue(t), nil
	case map[any]any:
		// yaml.v2-style maps; normalize string keys, reject the rest
		obj := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return Value{}, fmt.Errorf("object keys must be strings, got %T", k)
			}
			obj[key] = val
		}
		return ObjectValue(obj), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T: values must be string, number, boolean, or object", raw)
	}
}
