package environment

import (
	"os"
	"os/user"
	"strings"
)

// MergeMaps returns a new mapping holding base overlaid with overlay. Nested
// mappings present on both sides are merged recursively; for any other
// collision the overlay value wins. Neither argument is modified.
func MergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		result[k] = deepCopy(v)
	}
	for k, v := range overlay {
		if existing, ok := result[k].(map[string]interface{}); ok {
			if incoming, ok := v.(map[string]interface{}); ok {
				result[k] = MergeMaps(existing, incoming)
				continue
			}
		}
		result[k] = deepCopy(v)
	}
	return result
}

// ExpandHome returns a copy of doc in which every string value stored under a
// key containing "path" or "dir" has each "~" replaced with home. Nested
// mappings are always visited, including mappings held inside lists.
func ExpandHome(doc map[string]interface{}, home string) map[string]interface{} {
	result := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		result[k] = expandValue(k, v, home)
	}
	return result
}

func expandValue(key string, v interface{}, home string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return ExpandHome(val, home)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			switch item.(type) {
			case map[string]interface{}, []interface{}:
				out[i] = expandValue("", item, home)
			default:
				out[i] = item
			}
		}
		return out
	case string:
		if isPathKey(key) {
			return strings.ReplaceAll(val, "~", home)
		}
		return val
	default:
		return val
	}
}

func isPathKey(key string) bool {
	return strings.Contains(key, "path") || strings.Contains(key, "dir")
}

// homeDir resolves the home directory of the invoking user.
var homeDir = func() string {
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		return u.HomeDir
	}
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "~"
}

func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}
