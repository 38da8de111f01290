package queue

import (
	"encoding/json"
	"fmt"

	"radar/internal/types"
)

const (
	DataField = "data"

	maxUnwrapDepth = 4
)

// Encode wraps an envelope the way producers write it: a single data field
// holding the JSON document.
func Encode(env types.Envelope) (map[string]interface{}, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope %s: %w", env.ID, err)
	}
	return map[string]interface{}{DataField: string(data)}, nil
}

// Decode turns a raw entry field map into a validated envelope. It accepts the
// direct field form, {"data": "<json>"} and data wrapped more than once.
// Any failure is a PoisonError: redelivering the entry cannot fix it.
func Decode(entry Entry) (types.Envelope, error) {
	var env types.Envelope

	doc, err := unwrap(entry.Values, 0)
	if err != nil {
		return env, types.NewPoisonError(entry.ID, "cannot unwrap payload", err)
	}

	// flat stream fields carry nested metadata as a JSON string
	if s, ok := doc["metadata"].(string); ok {
		flat := make(map[string]interface{}, len(doc))
		for k, v := range doc {
			flat[k] = v
		}
		var meta map[string]interface{}
		if json.Unmarshal([]byte(s), &meta) == nil {
			flat["metadata"] = meta
		} else {
			delete(flat, "metadata")
		}
		doc = flat
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return env, types.NewPoisonError(entry.ID, "cannot re-encode payload", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, types.NewPoisonError(entry.ID, "payload is not an envelope", err)
	}
	if err := env.Validate(); err != nil {
		return env, types.NewPoisonError(entry.ID, "invalid envelope", err)
	}
	return env, nil
}

func unwrap(values map[string]interface{}, depth int) (map[string]interface{}, error) {
	if depth > maxUnwrapDepth {
		return nil, fmt.Errorf("payload nested deeper than %d levels", maxUnwrapDepth)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	inner, wrapped := values[DataField]
	if _, hasID := values["id"]; !wrapped || hasID {
		return values, nil
	}

	switch v := inner.(type) {
	case string:
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("data field is not a JSON object: %w", err)
		}
		return unwrap(decoded, depth+1)
	case map[string]interface{}:
		return unwrap(v, depth+1)
	default:
		return nil, fmt.Errorf("data field has unexpected type %T", inner)
	}
}

// EncodeResult wraps a structured result for the analyzed topic.
func EncodeResult(r *types.StructuredResult) (map[string]interface{}, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result %s: %w", r.ID, err)
	}
	return map[string]interface{}{DataField: string(data)}, nil
}

func DecodeResult(entry Entry) (*types.StructuredResult, error) {
	doc, err := unwrap(entry.Values, 0)
	if err != nil {
		return nil, types.NewPoisonError(entry.ID, "cannot unwrap result", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, types.NewPoisonError(entry.ID, "cannot re-encode result", err)
	}

	var r types.StructuredResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, types.NewPoisonError(entry.ID, "payload is not a result", err)
	}
	if err := r.Validate(); err != nil {
		return nil, types.NewPoisonError(entry.ID, "invalid result", err)
	}
	return &r, nil
}
