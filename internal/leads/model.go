package leads

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/roofing-leads/internal/abuse"
)

// DefaultSource tags leads whose form did not send one.
const DefaultSource = "website"

// Submission is the JSON body posted by the multi-step lead form.
type Submission struct {
	Name             string         `json:"name"`
	Phone            string         `json:"phone"`
	Email            string         `json:"email"`
	ZipCode          string         `json:"zipCode"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	Source           string         `json:"source"`
	Consent          bool           `json:"consent"`
	ConsentTS        string         `json:"consent_ts"`
	UTM              map[string]any `json:"utm"`
	Referrer         string         `json:"referrer"`
	SessionID        string         `json:"sessionId"`
	PropertyIssues   []string       `json:"propertyIssues"`
	EstimatedBenefit any            `json:"estimatedBenefit"`
}

// Lead is the persisted record. Attribution and consent details live in Notes
// as a JSON document rather than columns.
type Lead struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	ZipCode   string    `json:"zip_code,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Source    string    `json:"source"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// Notes is the extended-attribute blob stored in Lead.Notes.
type Notes struct {
	Consent          bool           `json:"consent"`
	ConsentTS        string         `json:"consent_ts,omitempty"`
	UTM              map[string]any `json:"utm,omitempty"`
	Referrer         string         `json:"referrer,omitempty"`
	SessionID        string         `json:"session_id,omitempty"`
	PropertyIssues   []string       `json:"property_issues,omitempty"`
	EstimatedBenefit any            `json:"estimated_benefit,omitempty"`
}

// RequestMeta carries the request-derived fields of a lead.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	GeoCity   string
	GeoRegion string
	// ReceivedAt stamps Lead.CreatedAt; zero means now.
	ReceivedAt time.Time
}

// BuildLead turns a validated submission into a Lead. City and state fall back
// to the edge geolocation headers when the form left them blank.
func BuildLead(sub *Submission, meta RequestMeta) (*Lead, error) {
	notes, err := json.Marshal(Notes{
		Consent:          sub.Consent,
		ConsentTS:        strings.TrimSpace(sub.ConsentTS),
		UTM:              sub.UTM,
		Referrer:         strings.TrimSpace(sub.Referrer),
		SessionID:        strings.TrimSpace(sub.SessionID),
		PropertyIssues:   sub.PropertyIssues,
		EstimatedBenefit: sub.EstimatedBenefit,
	})
	if err != nil {
		return nil, fmt.Errorf("leads: encode notes: %w", err)
	}

	receivedAt := meta.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	source := strings.TrimSpace(sub.Source)
	if source == "" {
		source = DefaultSource
	}

	return &Lead{
		Name:      strings.TrimSpace(sub.Name),
		Phone:     abuse.NormalizePhone(sub.Phone),
		Email:     strings.TrimSpace(sub.Email),
		ZipCode:   strings.TrimSpace(sub.ZipCode),
		City:      firstNonEmpty(sub.City, decodeGeoHeader(meta.GeoCity)),
		State:     firstNonEmpty(sub.State, decodeGeoHeader(meta.GeoRegion)),
		Source:    source,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Notes:     string(notes),
		CreatedAt: receivedAt.UTC(),
	}, nil
}

// decodeGeoHeader undoes the percent-encoding edge networks apply to city
// names such as "San%20Antonio".
func decodeGeoHeader(value string) string {
	value = strings.TrimSpace(value)
	if decoded, err := url.QueryUnescape(value); err == nil {
		return decoded
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
