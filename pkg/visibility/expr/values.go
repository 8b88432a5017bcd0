package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formscript/pkg/visibility"
)

const extrasPrefix = "extras."

func lookup(ctx visibility.Context, key string) (any, bool) {
	if len(key) > len(extrasPrefix) && strings.EqualFold(key[:len(extrasPrefix)], extrasPrefix) {
		return walk(ctx.Extras, key[len(extrasPrefix):])
	}
	return walk(ctx.Values, key)
}

// walk prefers an exact key match, so flattened keys such as "group.amount"
// resolve before nested traversal is attempted.
func walk(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		var next any
		var ok bool
		switch typed := current.(type) {
		case map[string]any:
			next, ok = typed[part]
		case map[string]string:
			next, ok = typed[part]
		}
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if n, ok := coerceNumber(value); ok {
		return n != 0
	}
	return true
}

func coerceBool(value any) bool {
	if s, ok := value.(string); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return parsed
		}
	}
	return truthy(value)
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int64, int32, uint, uint64:
		return true
	default:
		return false
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
