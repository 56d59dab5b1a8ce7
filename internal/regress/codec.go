package regress

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// Marshal encodes a fitted estimator together with its kind.
func Marshal(r Regressor) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.Kind(), err)
	}
	return json.Marshal(envelope{Kind: r.Kind().String(), Model: body})
}

// Unmarshal decodes the output of Marshal.
func Unmarshal(b []byte) (Regressor, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	k, err := ParseKind(env.Kind)
	if err != nil {
		return nil, err
	}
	var r Regressor
	switch k {
	case KindLinear:
		r = &Linear{}
	default:
		r = &GradientBoosting{}
	}
	if err := json.Unmarshal(env.Model, r); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", k, err)
	}
	if r.NumFeatures() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFitted, k)
	}
	return r, nil
}
