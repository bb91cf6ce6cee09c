package fewshots

import (
	"errors"
	"fmt"

	"few-shots/internal/shot"
)

// ErrInvalidArguments is returned when a call shape cannot be classified.
var ErrInvalidArguments = errors.New("invalid arguments")

// Kind tags the shape of a Request.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindBatch
	KindIDs
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindBatch:
		return "batch"
	case KindIDs:
		return "ids"
	default:
		return "unknown"
	}
}

// Request is one add/remove call in normalized form. Build it with Single,
// Batch or IDs, or with Classify for untyped input.
type Request struct {
	kind Kind
	data []shot.Datum
	ids  []string
}

// Single is one example; an empty id means the id is derived from inputs.
func Single(inputs, outputs shot.Value, id string) Request {
	return Request{kind: KindSingle, data: []shot.Datum{{Inputs: inputs, Outputs: outputs, ID: id}}}
}

// Batch is a list of examples. An empty batch is valid.
func Batch(data []shot.Datum) Request {
	return Request{kind: KindBatch, data: data}
}

// IDs is a list of explicit ids. Only remove accepts it.
func IDs(ids []string) Request {
	return Request{kind: KindIDs, ids: ids}
}

func (r Request) Kind() Kind { return r.kind }

// Data returns the examples of a Single or Batch request.
func (r Request) Data() []shot.Datum { return r.data }

// IDList returns the ids of an IDs request.
func (r Request) IDList() []string { return r.ids }

// Len is the number of items the request carries.
func (r Request) Len() int {
	if r.kind == KindIDs {
		return len(r.ids)
	}
	return len(r.data)
}

// Classify resolves untyped arguments, as decoded from JSON, into a Request.
//
// When first and second are both a string or an object the call is a single
// example. Otherwise first must be a list: an empty list is an empty batch, a
// list whose first element is a string is a list of ids (only if allowIDs),
// and anything else is a batch of [inputs, outputs] or [inputs, outputs, id]
// tuples.
func Classify(first, second any, allowIDs bool) (Request, error) {
	if shot.IsValue(first) && shot.IsValue(second) {
		in, err := shot.ValueOf(first)
		if err != nil {
			return Request{}, err
		}
		out, err := shot.ValueOf(second)
		if err != nil {
			return Request{}, err
		}
		return Single(in, out, ""), nil
	}

	switch list := first.(type) {
	case []shot.Datum:
		return Batch(list), nil
	case []string:
		if !allowIDs {
			return Request{}, fmt.Errorf("%w: id lists are only accepted by remove", ErrInvalidArguments)
		}
		return IDs(list), nil
	case []any:
		return classifyList(list, allowIDs)
	default:
		return Request{}, fmt.Errorf("%w: expected a string, an object or a list, got %T", ErrInvalidArguments, first)
	}
}

func classifyList(list []any, allowIDs bool) (Request, error) {
	if len(list) == 0 {
		return Batch([]shot.Datum{}), nil
	}

	if _, ok := list[0].(string); ok {
		if !allowIDs {
			return Request{}, fmt.Errorf("%w: id lists are only accepted by remove", ErrInvalidArguments)
		}
		ids := make([]string, len(list))
		for i, v := range list {
			id, ok := v.(string)
			if !ok {
				return Request{}, fmt.Errorf("%w: element %d of id list is %T", ErrInvalidArguments, i, v)
			}
			ids[i] = id
		}
		return IDs(ids), nil
	}

	data := make([]shot.Datum, len(list))
	for i, v := range list {
		d, err := datumOf(v)
		if err != nil {
			return Request{}, fmt.Errorf("element %d: %w", i, err)
		}
		data[i] = d
	}
	return Batch(data), nil
}

func datumOf(v any) (shot.Datum, error) {
	switch t := v.(type) {
	case shot.Datum:
		return t, nil
	case []any:
		if len(t) != 2 && len(t) != 3 {
			return shot.Datum{}, fmt.Errorf("%w: tuple has %d elements, expected 2 or 3", ErrInvalidArguments, len(t))
		}
		in, err := shot.ValueOf(t[0])
		if err != nil {
			return shot.Datum{}, err
		}
		out, err := shot.ValueOf(t[1])
		if err != nil {
			return shot.Datum{}, err
		}
		d := shot.Datum{Inputs: in, Outputs: out}
		if len(t) == 3 {
			id, ok := t[2].(string)
			if !ok {
				return shot.Datum{}, fmt.Errorf("%w: tuple id is %T, expected string", ErrInvalidArguments, t[2])
			}
			d.ID = id
		}
		return d, nil
	default:
		return shot.Datum{}, fmt.Errorf("%w: expected a tuple, got %T", ErrInvalidArguments, v)
	}
}
