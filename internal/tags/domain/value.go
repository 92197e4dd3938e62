package tags

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// ErrKindMismatch indicates a value cannot be converted to the requested kind.
var ErrKindMismatch = errors.New("tags: value kind mismatch")

// Value is a tag value: exactly one of bool, int, float or string.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Bool constructs a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Int constructs an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float constructs a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// String constructs a string value.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the variant held.
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v was never assigned.
func (v Value) IsZero() bool { return v.kind == 0 }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsFloat returns the numeric payload; integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Any returns the payload as a plain Go value.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String renders the payload as text.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// Equal compares kind and payload.
func (v Value) Equal(other Value) bool {
	return v == other
}

// MarshalJSON encodes the payload as a JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a JSON scalar. Integral numbers become KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded scalar into a Value.
func FromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int32:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case float32:
		return Float(float64(typed)), nil
	case float64:
		return Float(typed), nil
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("tags: invalid number %q: %w", typed.String(), err)
		}
		return Float(f), nil
	default:
		return Value{}, fmt.Errorf("tags: unsupported value type %T", raw)
	}
}

// Coerce converts v to kind where the conversion is lossless.
func (v Value) Coerce(kind Kind) (Value, error) {
	if v.kind == kind {
		return v, nil
	}
	switch kind {
	case KindFloat:
		if f, ok := v.AsFloat(); ok {
			return Float(f), nil
		}
	case KindInt:
		if v.kind == KindFloat && v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return Int(int64(v.f)), nil
		}
	case KindString:
		return String(v.String()), nil
	}
	return Value{}, fmt.Errorf("%w: %s to %s", ErrKindMismatch, v.kind, kind)
}
