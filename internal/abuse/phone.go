package abuse

import "strings"

// NormalizePhone strips every non-digit so "(512) 555-1234" and "5125551234"
// share a key.
func NormalizePhone(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
