package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wolfman30/roofing-leads/internal/leads"
)

// LeadAlerter emails the sales desk whenever a lead is accepted.
type LeadAlerter struct {
	sender EmailSender
	to     string
}

// NewLeadAlerter returns nil when there is no sender or recipient.
func NewLeadAlerter(sender EmailSender, to string) *LeadAlerter {
	to = strings.TrimSpace(to)
	if sender == nil || to == "" {
		return nil
	}
	return &LeadAlerter{sender: sender, to: to}
}

func (a *LeadAlerter) LeadAccepted(ctx context.Context, lead *leads.Lead) error {
	if err := a.sender.Send(ctx, BuildLeadAlert(a.to, lead)); err != nil {
		return fmt.Errorf("notify: lead alert %s: %w", lead.ID, err)
	}
	return nil
}

// BuildLeadAlert renders the plain-text alert for one lead.
func BuildLeadAlert(to string, lead *leads.Lead) EmailMessage {
	var parts []string
	for _, part := range []string{lead.City, lead.State, lead.ZipCode} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	location := strings.Join(parts, ", ")
	if location == "" {
		location = "unknown location"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Lead ID: %s\n", lead.ID)
	fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	fmt.Fprintf(&b, "Phone: %s\n", formatPhone(lead.Phone))
	if lead.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	}
	fmt.Fprintf(&b, "Location: %s\n", location)
	fmt.Fprintf(&b, "Source: %s\n", lead.Source)

	var notes leads.Notes
	if err := json.Unmarshal([]byte(lead.Notes), &notes); err == nil {
		if len(notes.PropertyIssues) > 0 {
			fmt.Fprintf(&b, "Reported issues: %s\n", strings.Join(notes.PropertyIssues, ", "))
		}
		if notes.EstimatedBenefit != nil {
			fmt.Fprintf(&b, "Estimated benefit: %v\n", notes.EstimatedBenefit)
		}
		fmt.Fprintf(&b, "TCPA consent: %t\n", notes.Consent)
	}

	return EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("New roofing lead: %s (%s)", lead.Name, location),
		Body:    b.String(),
	}
}

func formatPhone(digits string) string {
	if len(digits) != 10 {
		return digits
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}

var _ leads.AcceptHook = (*LeadAlerter)(nil)
