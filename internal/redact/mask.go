package redact

import "strings"

// SensitiveKeys are the tool input keys whose values are always masked,
// regardless of what the value looks like.
var SensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"access_key", "secret_key", "private_key", "authorization",
	"auth", "credential", "credentials",
}

// MaskMap masks sensitive keys in a decoded tool input and scrubs secret
// patterns out of the remaining string values. Nested maps and slices are
// walked; the input map is not modified.
func MaskMap(data map[string]any) map[string]any {
	keySet := make(map[string]bool, len(SensitiveKeys))
	for _, k := range SensitiveKeys {
		keySet[k] = true
	}
	return maskMap(data, keySet)
}

func maskMap(data map[string]any, keySet map[string]bool) map[string]any {
	result := make(map[string]any, len(data))
	for k, v := range data {
		if keySet[strings.ToLower(k)] {
			if v == nil {
				result[k] = nil
			} else {
				result[k] = Mask
			}
			continue
		}
		result[k] = maskValue(v, keySet)
	}
	return result
}

func maskValue(v any, keySet map[string]bool) any {
	switch t := v.(type) {
	case string:
		return Scrub(t)
	case map[string]any:
		return maskMap(t, keySet)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = maskValue(e, keySet)
		}
		return out
	default:
		return v
	}
}
