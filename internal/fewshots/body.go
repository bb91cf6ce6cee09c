package fewshots

import "few-shots/internal/shot"

// Body is the JSON form of an add or remove call, shared by the HTTP API and
// the ingest queue. Inputs is a string or object together with Outputs, or a
// list of [inputs, outputs, id?] tuples, or (remove only) a list of ids.
type Body struct {
	Namespace string `json:"namespace,omitempty"`
	Inputs    any    `json:"inputs" validate:"required"`
	Outputs   any    `json:"outputs,omitempty"`
	ID        string `json:"id,omitempty"`
}

// AddRequest classifies the body as an add call.
func (b Body) AddRequest() (Request, error) {
	return Classify(b.Inputs, b.Outputs, false)
}

// RemoveRequest classifies the body as a remove call. Outputs do not affect
// the id, so a single example may be removed by its inputs alone.
func (b Body) RemoveRequest() (Request, error) {
	outputs := b.Outputs
	if outputs == nil && shot.IsValue(b.Inputs) {
		outputs = ""
	}
	return Classify(b.Inputs, outputs, true)
}

// Options returns the per-call options the body carries.
func (b Body) Options() []Option {
	opts := []Option{WithNamespace(b.Namespace)}
	if b.ID != "" {
		opts = append(opts, WithID(b.ID))
	}
	return opts
}
