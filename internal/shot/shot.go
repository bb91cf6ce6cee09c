// Package shot defines few-shot examples and their content-addressed identity.
package shot

// Shot is a stored example: an input paired with its desired output.
// A Shot is not modified after construction.
type Shot struct {
	ID      string `json:"id"`
	Inputs  Value  `json:"inputs"`
	Outputs Value  `json:"outputs"`

	key string
}

// New builds a Shot. An empty id is derived from the canonical key of inputs,
// so two shots with equal inputs and no explicit id share the same id.
func New(inputs, outputs Value, id string) (Shot, error) {
	key, err := inputs.Canonical()
	if err != nil {
		return Shot{}, err
	}
	if id == "" {
		id = idForKey(key)
	}
	return Shot{ID: id, Inputs: inputs, Outputs: outputs, key: key}, nil
}

// Key is the canonical serialization of the inputs. It is both the text sent
// to the embedder and the basis of the derived id.
func (s Shot) Key() string {
	if s.key != "" {
		return s.key
	}
	key, _ := s.Inputs.Canonical()
	return key
}

// Equal compares ids and canonical inputs/outputs.
func (s Shot) Equal(other Shot) bool {
	return s.ID == other.ID && s.Inputs.Equal(other.Inputs) && s.Outputs.Equal(other.Outputs)
}

// Datum is the normalized form of every add/remove call shape. An empty ID
// means the id is derived from Inputs.
type Datum struct {
	Inputs  Value
	Outputs Value
	ID      string
}

// Shot builds the Shot described by the datum.
func (d Datum) Shot() (Shot, error) {
	return New(d.Inputs, d.Outputs, d.ID)
}

// ScoredShot is a similarity search result. Lower distance is closer.
type ScoredShot struct {
	Distance float64 `json:"distance"`
	Shot     Shot    `json:"shot"`
}
