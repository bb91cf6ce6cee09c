package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"few-shots/internal/embeddings"
	"few-shots/internal/shot"
)

// payload is the persisted form of a shot's inputs and outputs. Values keep
// their kind: text stays a JSON string, objects stay JSON objects.
type payload struct {
	Inputs  shot.Value `json:"inputs"`
	Outputs shot.Value `json:"outputs"`
}

func encodePayload(s shot.Shot) (string, error) {
	b, err := json.Marshal(payload{Inputs: s.Inputs, Outputs: s.Outputs})
	if err != nil {
		return "", fmt.Errorf("encode payload for %q: %w", s.ID, err)
	}
	return string(b), nil
}

func decodePayload(id string, raw []byte) (shot.Shot, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return shot.Shot{}, fmt.Errorf("decode payload for %q: %w", id, err)
	}
	return shot.New(p.Inputs, p.Outputs, id)
}

// vectorToString converts a Vector ([]float32) to pgvector array format.
// Format: "[0.1,0.2,0.3,...]"
func vectorToString(v embeddings.Vector) string {
	if len(v) == 0 {
		return "[]"
	}
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// encodeVector converts a vector to little-endian float32 bytes.
func encodeVector(v embeddings.Vector) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) embeddings.Vector {
	v := make(embeddings.Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
