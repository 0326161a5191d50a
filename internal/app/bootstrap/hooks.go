package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/roofing-leads/internal/config"
	"github.com/wolfman30/roofing-leads/internal/distribution"
	"github.com/wolfman30/roofing-leads/internal/leads"
	"github.com/wolfman30/roofing-leads/internal/notify"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

// BuildEmailSender prefers SendGrid, then SES. It returns nil when neither is
// configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if awsCfg != nil && cfg.SESFromEmail != "" {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); ses != nil {
			return ses
		}
	}
	return nil
}

// BuildAcceptHooks returns the background side effects run for every accepted
// lead: the sales alert email and the distribution queue.
func BuildAcceptHooks(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) []leads.AcceptHook {
	if logger == nil {
		logger = logging.Default()
	}
	var hooks []leads.AcceptHook

	if cfg.LeadAlertEmail != "" {
		sender := BuildEmailSender(cfg, awsCfg, logger)
		if sender == nil {
			logger.Warn("LEAD_ALERT_EMAIL set but no email provider configured; alerts are logged only")
			sender = notify.NewStubEmailSender(logger)
		}
		if alerter := notify.NewLeadAlerter(sender, cfg.LeadAlertEmail); alerter != nil {
			hooks = append(hooks, alerter)
		}
	}

	if cfg.LeadQueueURL != "" && awsCfg != nil {
		if pub := distribution.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.LeadQueueURL); pub != nil {
			hooks = append(hooks, pub)
		}
	}

	return hooks
}
