// Package distribution hands accepted leads to the contractor-matching
// workers through an SQS queue.
package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/roofing-leads/internal/leads"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// LeadAvailable is the queue message for one accepted lead. Contact details
// stay in the lead store; matchers fetch them by id once a buyer is chosen.
type LeadAvailable struct {
	LeadID     string    `json:"lead_id"`
	ZipCode    string    `json:"zip_code,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	Source     string    `json:"source"`
	Issues     []string  `json:"property_issues,omitempty"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// SQSPublisher implements queueing of accepted leads backed by AWS/LocalStack SQS.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
	now      func() time.Time
}

// NewSQSPublisher returns nil when no queue URL is configured.
func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if queueURL == "" {
		return nil
	}
	if client == nil {
		panic("distribution: SQS client cannot be nil")
	}
	return &SQSPublisher{client: client, queueURL: queueURL, now: time.Now}
}

func (p *SQSPublisher) LeadAccepted(ctx context.Context, lead *leads.Lead) error {
	msg := LeadAvailable{
		LeadID:     lead.ID,
		ZipCode:    lead.ZipCode,
		City:       lead.City,
		State:      lead.State,
		Source:     lead.Source,
		AcceptedAt: p.now().UTC(),
	}
	var notes leads.Notes
	if err := json.Unmarshal([]byte(lead.Notes), &notes); err == nil {
		msg.Issues = notes.PropertyIssues
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("distribution: encode message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if lead.State != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"state": {DataType: aws.String("String"), StringValue: aws.String(lead.State)},
		}
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("distribution: failed to send SQS message: %w", err)
	}
	return nil
}

var _ leads.AcceptHook = (*SQSPublisher)(nil)
