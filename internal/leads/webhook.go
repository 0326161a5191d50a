package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	webhookUserAgent      = "roofing-leads-backup/1.0"
)

// WebhookConfig controls the backup webhook client.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// BackupWebhook posts every lead to an external endpoint as a second copy
// alongside the primary store.
type BackupWebhook struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

// NewBackupWebhook returns nil when no URL is configured, which disables the
// fallback path.
func NewBackupWebhook(cfg WebhookConfig) *BackupWebhook {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &BackupWebhook{url: url, timeout: timeout, httpClient: httpClient}
}

// WebhookPayload is the body posted to the backup URL: the lead fields plus the
// send time and the primary store id when one exists.
type WebhookPayload struct {
	*Lead
	Timestamp string `json:"timestamp"`
	PrimaryID string `json:"primary_id,omitempty"`
}

// Send posts lead once. Non-2xx responses are errors.
func (w *BackupWebhook) Send(ctx context.Context, lead *Lead, primaryID string) error {
	ctx, span := tracer.Start(ctx, "leads.backup_webhook", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	body, err := json.Marshal(WebhookPayload{
		Lead:      lead,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		PrimaryID: primaryID,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("leads: encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("leads: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("leads: webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		return fmt.Errorf("leads: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
