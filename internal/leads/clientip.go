package leads

import (
	"net/http"
	"strings"
)

// ClientIP resolves the caller from proxy headers: the first
// X-Forwarded-For entry, then X-Real-IP, then "unknown".
func ClientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(h.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return "unknown"
}
