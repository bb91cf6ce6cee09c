package shot

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Value is one side of an example: either plain text or a JSON object.
// The zero value is the empty string.
type Value struct {
	text   string
	object map[string]any
	isObj  bool
}

// Text wraps a plain string.
func Text(s string) Value {
	return Value{text: s}
}

// Object wraps a JSON object. A nil map is treated as an empty object.
func Object(m map[string]any) Value {
	if m == nil {
		m = map[string]any{}
	}
	return Value{object: m, isObj: true}
}

// ValueOf converts a decoded JSON value into a Value.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case string:
		return Text(val), nil
	case map[string]any:
		return Object(val), nil
	case Value:
		return val, nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrInvalidInputKind, v)
	}
}

// IsValue reports whether v is a string or a string-keyed object.
func IsValue(v any) bool {
	switch v.(type) {
	case string, map[string]any, Value:
		return true
	default:
		return false
	}
}

func (v Value) IsObject() bool { return v.isObj }

// Text returns the string form for text values and "" for objects.
func (v Value) Text() string { return v.text }

// Object returns the object for object values and nil for text.
func (v Value) Object() map[string]any { return v.object }

// Any returns the underlying string or map.
func (v Value) Any() any {
	if v.isObj {
		return v.object
	}
	return v.text
}

// Canonical returns the canonical key of the value.
func (v Value) Canonical() (string, error) {
	if v.isObj {
		return encodeObject(v.object)
	}
	return v.text, nil
}

// Equal reports whether two values share the same canonical form.
func (v Value) Equal(other Value) bool {
	if v.isObj != other.isObj {
		return false
	}
	a, errA := v.Canonical()
	b, errB := other.Canonical()
	return errA == nil && errB == nil && a == b
}

func (v Value) String() string {
	s, err := v.Canonical()
	if err != nil {
		return fmt.Sprintf("%v", v.object)
	}
	return s
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any(), json.Deterministic(true))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}
