package phone

import "strings"

// DefaultCountryCode is prepended to numbers that carry no "+" prefix.
const DefaultCountryCode = "+1"

// Normalize trims raw and prefixes it with defaultCode unless it already starts
// with "+". Nothing else is validated; the calling service rejects bad numbers.
func Normalize(raw, defaultCode string) string {
	n := strings.TrimSpace(raw)
	if strings.HasPrefix(n, "+") {
		return n
	}
	if defaultCode == "" {
		defaultCode = DefaultCountryCode
	}
	if !strings.HasPrefix(defaultCode, "+") {
		defaultCode = "+" + defaultCode
	}
	return defaultCode + n
}
