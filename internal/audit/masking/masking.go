package masking

import "strings"

const maskToken = "****"

// SensitiveKeys are metadata keys masked before an audit entry is written.
var SensitiveKeys = []string{"email", "payment_reference", "phone"}

// MaskSecret redacts a value while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskKeys returns a copy of input with string values under keys masked,
// descending into nested maps.
func MaskKeys(input map[string]any, keys ...string) map[string]any {
	if input == nil {
		return nil
	}
	sensitive := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		sensitive[strings.ToLower(key)] = struct{}{}
	}
	return maskMap(input, sensitive)
}

func maskMap(input map[string]any, sensitive map[string]struct{}) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		_, hit := sensitive[strings.ToLower(trimmedKey)]
		switch cast := value.(type) {
		case string:
			if hit {
				out[trimmedKey] = MaskSecret(cast)
				continue
			}
			out[trimmedKey] = cast
		case map[string]any:
			out[trimmedKey] = maskMap(cast, sensitive)
		default:
			out[trimmedKey] = value
		}
	}
	return out
}
