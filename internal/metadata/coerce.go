package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDict turns a metadata cell into a structured mapping. Cells arrive
// either already structured or as serialized literals; anything else is a
// type error. A failed parse is returned as an error rather than swallowed,
// so callers decide whether to skip the row or abort.
func ParseDict(v any) (map[string]any, error) {
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case string:
		lit, err := parseLiteral(x)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mapping literal: %w", err)
		}
		m, ok := lit.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("literal is %T, not a mapping", lit)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("cell is %T, expected mapping or string", v)
	}
}

// ToFloat64Map coerces every value of a flat mapping to float64.
// Numeric strings (including "NaN") are accepted.
func ToFloat64Map(m map[string]any) (map[string]float64, error) {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		f, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}

// CoerceFeatures combines ParseDict and numeric coercion for a features cell.
// Already-coerced cells pass through unchanged.
func CoerceFeatures(v any) (map[string]float64, error) {
	if f, ok := v.(map[string]float64); ok {
		return f, nil
	}
	m, err := ParseDict(v)
	if err != nil {
		return nil, err
	}
	return ToFloat64Map(m)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not numeric", v, v)
	}
}

// ModelResult is one candidate model's hyper-parameter search outcome: the
// winning parameter values plus any trailing error scores the search recorded.
type ModelResult struct {
	Params map[string]float64 `json:"params" msgpack:"params"`
	Scores []float64          `json:"scores,omitempty" msgpack:"scores,omitempty"`
}

// HptResult maps candidate model name to its search outcome.
type HptResult map[string]ModelResult

// DecodeHptResult converts a parsed hpt_res mapping into its typed form.
// Each entry must be a list whose first element is the parameter mapping;
// remaining numeric elements are kept as scores.
func DecodeHptResult(m map[string]any) (HptResult, error) {
	out := make(HptResult, len(m))
	for model, raw := range m {
		entry, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("entry for model %q is %T, expected a list", model, raw)
		}
		if len(entry) == 0 {
			return nil, fmt.Errorf("entry for model %q is empty", model)
		}
		paramsRaw, ok := entry[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("first element for model %q is %T, expected a mapping", model, entry[0])
		}
		params, err := ToFloat64Map(paramsRaw)
		if err != nil {
			return nil, fmt.Errorf("params for model %q: %w", model, err)
		}

		var scores []float64
		for i, tail := range entry[1:] {
			score, err := toFloat64(tail)
			if err != nil {
				return nil, fmt.Errorf("score %d for model %q: %w", i, model, err)
			}
			scores = append(scores, score)
		}
		out[model] = ModelResult{Params: params, Scores: scores}
	}
	return out, nil
}
