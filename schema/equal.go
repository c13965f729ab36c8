package schema

import (
	"encoding/json"
)

// Equal reports whether a and b are structurally equal once reduced to plain
// JSON values. Arrays compare in order; objects compare by key set and value.
// Values that cannot be encoded as JSON are never equal.
func Equal(a, b any) bool {
	na, err := normalize(a)
	if err != nil {
		return false
	}
	nb, err := normalize(b)
	if err != nil {
		return false
	}
	return equalJSON(na, nb)
}

// normalize turns v into the generic tree produced by encoding/json
// (map[string]any, []any, float64, string, bool, nil).
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func equalJSON(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !equalJSON(v, w) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
