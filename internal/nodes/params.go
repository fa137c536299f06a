package nodes

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"n8n-gportal/pkg/errors"
)

// Parameter sources differ in how they pass values: expressions resolve to
// strings, JSON bodies to float64, static definitions to int. The helpers
// below coerce to the type a node expects.

// StringParam resolves name as a string
func StringParam(ef ExecuteFunctions, name string, itemIndex int) (string, error) {
	v, err := ef.Parameter(name, itemIndex)
	if err != nil {
		return "", err
	}
	return ToString(v), nil
}

// IntParam resolves name as an integer
func IntParam(ef ExecuteFunctions, name string, itemIndex int) (int, error) {
	v, err := ef.Parameter(name, itemIndex)
	if err != nil {
		return 0, err
	}
	n, ok := ToInt(v)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, errors.CodeInvalidFormat,
			"parameter %q must be a number, got %v", name, v)
	}
	return n, nil
}

// BoolParamOr resolves name as a bool, returning fallback when it cannot be resolved
func BoolParamOr(ef ExecuteFunctions, name string, itemIndex int, fallback bool) bool {
	v, err := ef.Parameter(name, itemIndex)
	if err != nil || v == nil {
		return fallback
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return fallback
}

// ObjectParamOr resolves name as a JSON object, returning an empty map when unset
func ObjectParamOr(ef ExecuteFunctions, name string, itemIndex int) map[string]any {
	v, err := ef.Parameter(name, itemIndex)
	if err != nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// ToString renders a parameter value as a string
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt converts numeric parameter values. Fractions are truncated.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// Lookup walks a dotted path through nested maps
func Lookup(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
