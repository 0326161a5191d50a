package abuse

import (
	"math"
	"net/http"
	"regexp"
	"strings"
)

// Bot classification reasons.
const (
	ReasonHoneypot       = "honeypot"
	ReasonUserAgent      = "user-agent"
	ReasonMissingHeaders = "missing-headers"
)

// HoneypotFields are decoy inputs hidden from humans on the lead form.
var HoneypotFields = []string{"website", "url", "honeypot"}

var botUserAgent = regexp.MustCompile(`(?i)bot|crawler|spider|scraper|curl|wget|python|java|php`)

// Verdict is the BotFilter result.
type Verdict struct {
	IsBot  bool
	Reason string
}

// BotFilter applies cheap heuristics to a submission before any state is
// recorded for it.
type BotFilter struct {
	honeypots []string
	userAgent *regexp.Regexp
}

// NewBotFilter returns a filter using the default honeypot fields and
// user-agent signatures.
func NewBotFilter() *BotFilter {
	return &BotFilter{
		honeypots: HoneypotFields,
		userAgent: botUserAgent,
	}
}

// Classify checks, in order, honeypot fields, the user agent and the presence
// of Accept/Accept-Language. payload is the raw decoded JSON object.
func (f *BotFilter) Classify(payload map[string]any, header http.Header) Verdict {
	for _, field := range f.honeypots {
		if truthy(payload[field]) {
			return Verdict{IsBot: true, Reason: ReasonHoneypot}
		}
	}

	if ua := header.Get("User-Agent"); ua != "" && f.userAgent.MatchString(ua) {
		return Verdict{IsBot: true, Reason: ReasonUserAgent}
	}

	if strings.TrimSpace(header.Get("Accept")) == "" || strings.TrimSpace(header.Get("Accept-Language")) == "" {
		return Verdict{IsBot: true, Reason: ReasonMissingHeaders}
	}

	return Verdict{}
}

// truthy follows JSON/JavaScript truthiness: empty string, false, 0 and null
// are false; objects and arrays are true even when empty.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		return true
	}
}
