package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/roofing-leads/internal/leads"
)

type captureSender struct {
	msgs []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestNewLeadAlerter_Disabled(t *testing.T) {
	assert.Nil(t, NewLeadAlerter(nil, "sales@example.com"))
	assert.Nil(t, NewLeadAlerter(&captureSender{}, " "))
}

func TestLeadAlerter_LeadAccepted(t *testing.T) {
	sender := &captureSender{}
	alerter := NewLeadAlerter(sender, "sales@example.com")

	lead := &leads.Lead{
		ID:      "lead-1",
		Name:    "Dana Reyes",
		Phone:   "5125551234",
		City:    "Austin",
		State:   "TX",
		ZipCode: "78701",
		Source:  "city-page",
		Notes:   `{"consent":true,"property_issues":["hail damage"],"estimated_benefit":12500}`,
	}
	require.NoError(t, alerter.LeadAccepted(context.Background(), lead))
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, "sales@example.com", msg.To)
	assert.Equal(t, "New roofing lead: Dana Reyes (Austin, TX, 78701)", msg.Subject)
	assert.Contains(t, msg.Body, "Phone: (512) 555-1234")
	assert.Contains(t, msg.Body, "Reported issues: hail damage")
	assert.Contains(t, msg.Body, "Estimated benefit: 12500")
	assert.Contains(t, msg.Body, "TCPA consent: true")
	assert.NotContains(t, msg.Body, "Email:")
}

func TestLeadAlerter_SendError(t *testing.T) {
	alerter := NewLeadAlerter(&captureSender{err: errors.New("smtp down")}, "sales@example.com")
	err := alerter.LeadAccepted(context.Background(), &leads.Lead{ID: "lead-2"})
	assert.ErrorContains(t, err, "lead-2")
}

func TestBuildLeadAlert_UnknownLocation(t *testing.T) {
	msg := BuildLeadAlert("sales@example.com", &leads.Lead{Name: "A", Phone: "123"})
	assert.Equal(t, "New roofing lead: A (unknown location)", msg.Subject)
	assert.Contains(t, msg.Body, "Phone: 123")
}
