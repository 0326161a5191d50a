package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/roofing-leads/internal/abuse"
	"github.com/wolfman30/roofing-leads/internal/observability/metrics"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

var tracer = otel.Tracer("roofing.internal.leads")

const defaultPersistTimeout = 5 * time.Second

// Disposition is the true outcome of a submission, which for bots differs from
// what the caller is told.
type Disposition string

const (
	DispositionAccepted    Disposition = "accepted"
	DispositionRateLimited Disposition = "rate_limited"
	DispositionMalformed   Disposition = "malformed"
	DispositionBot         Disposition = "bot"
	DispositionDuplicate   Disposition = "duplicate"
	DispositionInvalid     Disposition = "invalid"
	DispositionFailed      Disposition = "failed"
)

// Client-facing messages.
const (
	MessageAccepted    = "Thank you! A roofing benefits specialist will contact you shortly."
	MessageBot         = "Received"
	MessageDuplicate   = "We already have your information. A specialist will contact you soon."
	MessageRateLimited = "Too many requests. Please try again later."
	MessageMalformed   = "Invalid request body"
	MessageFailed      = "Unable to process your request. Please try again later."
)

// AcceptHook is notified after a lead has been persisted on at least one
// channel. Hooks run in the background and cannot change the response.
type AcceptHook interface {
	LeadAccepted(ctx context.Context, lead *Lead) error
}

// Config wires the pipeline. Repository and Webhook may be nil; with both nil
// every valid submission fails with 500.
type Config struct {
	RateLimiter    *abuse.RateLimiter
	Duplicates     *abuse.DuplicateDetector
	BotFilter      *abuse.BotFilter
	Repository     Repository
	Webhook        *BackupWebhook
	PersistTimeout time.Duration
	Metrics        *metrics.LeadMetrics
	Hooks          []AcceptHook
	Logger         *logging.Logger
}

// Request is one inbound submission.
type Request struct {
	Body   []byte
	Header http.Header
}

// Outcome is what the HTTP layer reports back.
type Outcome struct {
	Disposition Disposition
	Status      int
	Success     bool
	Message     string
	Error       string
	LeadID      string
	Duplicate   bool
	RetryAfter  time.Duration
}

// Pipeline runs the ordered intake checks and persists accepted leads.
type Pipeline struct {
	limiter        *abuse.RateLimiter
	duplicates     *abuse.DuplicateDetector
	bots           *abuse.BotFilter
	repo           Repository
	webhook        *BackupWebhook
	persistTimeout time.Duration
	metrics        *metrics.LeadMetrics
	hooks          []AcceptHook
	logger         *logging.Logger
	hooksWG        sync.WaitGroup
}

// NewPipeline fills in in-memory defaults for any missing check.
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = abuse.NewRateLimiter(nil, abuse.RateLimitConfig{}, logger)
	}
	duplicates := cfg.Duplicates
	if duplicates == nil {
		duplicates = abuse.NewDuplicateDetector(nil, abuse.DuplicateConfig{}, logger)
	}
	bots := cfg.BotFilter
	if bots == nil {
		bots = abuse.NewBotFilter()
	}
	timeout := cfg.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &Pipeline{
		limiter:        limiter,
		duplicates:     duplicates,
		bots:           bots,
		repo:           cfg.Repository,
		webhook:        cfg.Webhook,
		persistTimeout: timeout,
		metrics:        cfg.Metrics,
		hooks:          cfg.Hooks,
		logger:         logger,
	}
}

// BackupConfigured reports whether the webhook fallback is enabled.
func (p *Pipeline) BackupConfigured() bool {
	return p.webhook != nil
}

// Submit processes one submission. The order is fixed and each step may end
// processing: rate limit, parse, bot filter, duplicate, validation, then
// primary store and backup webhook.
func (p *Pipeline) Submit(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "leads.submit")
	defer span.End()

	out := p.submit(ctx, req)

	span.SetAttributes(attribute.String("leads.disposition", string(out.Disposition)))
	p.metrics.ObserveSubmission(string(out.Disposition), time.Since(start).Seconds())
	return out
}

func (p *Pipeline) submit(ctx context.Context, req Request) Outcome {
	header := req.Header
	if header == nil {
		header = http.Header{}
	}
	clientIP := ClientIP(header)
	logger := p.logger.With("client_ip", clientIP)

	if decision := p.limiter.Check(ctx, clientIP); !decision.Allowed {
		logger.Warn("lead submission rate limited")
		return Outcome{
			Disposition: DispositionRateLimited,
			Status:      http.StatusTooManyRequests,
			Error:       MessageRateLimited,
			RetryAfter:  p.limiter.Window(),
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(req.Body, &raw); err != nil || raw == nil {
		logger.Info("malformed lead payload", "error", err)
		return malformed()
	}

	// Bots are told the submission was received so detection is not revealed.
	if verdict := p.bots.Classify(raw, header); verdict.IsBot {
		logger.Info("bot submission discarded", "reason", verdict.Reason, "user_agent", header.Get("User-Agent"))
		return Outcome{
			Disposition: DispositionBot,
			Status:      http.StatusOK,
			Success:     true,
			Message:     MessageBot,
		}
	}

	var sub Submission
	if err := json.Unmarshal(req.Body, &sub); err != nil {
		logger.Info("lead payload has unexpected field types", "error", err)
		return malformed()
	}

	if sub.Phone != "" && p.duplicates.IsDuplicate(ctx, sub.Phone) {
		logger.Info("duplicate lead submission")
		return Outcome{
			Disposition: DispositionDuplicate,
			Status:      http.StatusOK,
			Success:     true,
			Message:     MessageDuplicate,
			Duplicate:   true,
		}
	}

	if result := Validate(&sub); !result.Valid {
		logger.Info("lead failed validation", "fields", result.Fields())
		return Outcome{
			Disposition: DispositionInvalid,
			Status:      http.StatusBadRequest,
			Error:       result.Err().Error(),
		}
	}

	lead, err := BuildLead(&sub, RequestMeta{
		IPAddress:  clientIP,
		UserAgent:  header.Get("User-Agent"),
		GeoCity:    header.Get("X-User-City"),
		GeoRegion:  header.Get("X-User-Region"),
		ReceivedAt: time.Now(),
	})
	if err != nil {
		logger.Error("failed to build lead", "error", err)
		return failed()
	}

	// Once validated the lead is committed to; a client disconnect must not
	// abort the writes.
	persistCtx := context.WithoutCancel(ctx)
	primary := p.persistPrimary(persistCtx, lead)
	if primary.ok {
		lead.ID = primary.id
		if !primary.createdAt.IsZero() {
			lead.CreatedAt = primary.createdAt
		}
	}
	backup := p.persistBackup(persistCtx, lead, primary.id)

	id, ok := combine(primary, backup)
	if !ok {
		logger.Error("lead lost: no persistence channel succeeded",
			"primary_error", errString(primary.err),
			"webhook_configured", backup.attempted,
		)
		// The caller is told to retry; that retry must not be rejected as a
		// duplicate of a lead that was never stored.
		p.duplicates.Release(persistCtx, sub.Phone)
		return failed()
	}

	lead.ID = id
	logger.Info("lead accepted", "lead_id", id, "primary_ok", primary.ok, "webhook_ok", backup.ok)
	p.runHooks(ctx, lead)

	return Outcome{
		Disposition: DispositionAccepted,
		Status:      http.StatusOK,
		Success:     true,
		Message:     MessageAccepted,
		LeadID:      id,
	}
}

// attempt is the result of one persistence channel.
type attempt struct {
	attempted bool
	ok        bool
	id        string
	createdAt time.Time
	err       error
}

func (p *Pipeline) persistPrimary(ctx context.Context, lead *Lead) attempt {
	if p.repo == nil {
		return attempt{err: ErrPrimaryUnavailable}
	}
	ctx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()

	stored, err := p.repo.Create(ctx, lead)
	p.metrics.ObservePersist("primary", err == nil)
	if err != nil {
		p.logger.Error("primary lead store insert failed", "error", err)
		return attempt{attempted: true, err: err}
	}
	return attempt{attempted: true, ok: true, id: stored.ID, createdAt: stored.CreatedAt}
}

// persistBackup always runs when a webhook is configured, whatever the primary
// outcome, so every lead has a second copy.
func (p *Pipeline) persistBackup(ctx context.Context, lead *Lead, primaryID string) attempt {
	if p.webhook == nil {
		return attempt{}
	}
	err := p.webhook.Send(ctx, lead, primaryID)
	p.metrics.ObservePersist("webhook", err == nil)
	if err != nil {
		p.logger.Error("backup webhook failed", "error", err, "primary_id", primaryID)
		return attempt{attempted: true, err: err}
	}
	return attempt{attempted: true, ok: true}
}

// combine decides the response: the primary id when the store succeeded,
// otherwise a synthetic id when the webhook was attempted.
func combine(primary, backup attempt) (string, bool) {
	if primary.ok {
		return primary.id, true
	}
	if backup.attempted {
		return "fallback-" + uuid.NewString(), true
	}
	return "", false
}

func (p *Pipeline) runHooks(ctx context.Context, lead *Lead) {
	if len(p.hooks) == 0 {
		return
	}
	snapshot := *lead
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range p.hooks {
		p.hooksWG.Add(1)
		go func(hook AcceptHook) {
			defer p.hooksWG.Done()
			ctx, cancel := context.WithTimeout(hookCtx, p.persistTimeout)
			defer cancel()
			if err := hook.LeadAccepted(ctx, &snapshot); err != nil {
				p.logger.Warn("lead accept hook failed", "hook", fmt.Sprintf("%T", hook), "lead_id", snapshot.ID, "error", err)
			}
		}(hook)
	}
}

// Wait blocks until background accept hooks finish or ctx is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.hooksWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func malformed() Outcome {
	return Outcome{
		Disposition: DispositionMalformed,
		Status:      http.StatusBadRequest,
		Error:       MessageMalformed,
	}
}

func failed() Outcome {
	return Outcome{
		Disposition: DispositionFailed,
		Status:      http.StatusInternalServerError,
		Error:       MessageFailed,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
