package shot

import (
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
)

// ErrInvalidInputKind is returned when a top-level value is neither a string
// nor a string-keyed object.
var ErrInvalidInputKind = errors.New("invalid input kind")

// Canonicalize returns the canonical key of an input value. Strings are
// returned unchanged; objects are encoded as compact JSON with map keys
// sorted at every depth, so equal values always yield identical bytes.
func Canonicalize(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case map[string]any:
		return encodeObject(val)
	case Value:
		return val.Canonical()
	case *Value:
		if val == nil {
			return "", fmt.Errorf("%w: nil value", ErrInvalidInputKind)
		}
		return val.Canonical()
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidInputKind, v)
	}
}

// DeriveID returns the content-derived id for an input value: a name-based
// (SHA-1) UUID of its canonical key in the OID namespace.
func DeriveID(v any) (string, error) {
	key, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return idForKey(key), nil
}

func idForKey(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func encodeObject(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m, json.Deterministic(true))
	if err != nil {
		return "", fmt.Errorf("canonicalize object: %w", err)
	}
	return string(b), nil
}
