package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// SendGridProvider sends through the SendGrid v3 API.
type SendGridProvider struct {
	client *sendgrid.Client
	cfg    config.ProviderConfig
}

func NewSendGridProvider(cfg config.ProviderConfig) *SendGridProvider {
	return &SendGridProvider{
		client: sendgrid.NewSendClient(cfg.Password),
		cfg:    cfg,
	}
}

func (p *SendGridProvider) Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error) {
	from := mail.NewEmail(msg.FromName, msg.From)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.TextContent, msg.HTMLContent)

	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}
	message.SetTrackingSettings(trackingSettings(msg))

	response, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return nil, fmt.Errorf("sendgrid API error %d: %s", response.StatusCode, response.Body)
	}

	externalID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		externalID = ids[0]
	}

	return &SendResult{
		ExternalID: externalID,
		Provider:   p.Name(),
		Timestamp:  time.Now(),
	}, nil
}

func trackingSettings(msg *model.EmailMessage) *mail.TrackingSettings {
	settings := mail.NewTrackingSettings()
	open := mail.NewOpenTrackingSetting()
	open.SetEnable(msg.TrackOpens)
	settings.SetOpenTracking(open)
	click := mail.NewClickTrackingSetting()
	click.SetEnable(msg.TrackClicks)
	settings.SetClickTracking(click)
	return settings
}

func (p *SendGridProvider) Name() string        { return p.cfg.Name }
func (p *SendGridProvider) DisplayName() string { return p.cfg.DisplayName }
func (p *SendGridProvider) Priority() int       { return p.cfg.Priority }

func (p *SendGridProvider) IsAvailable() bool {
	return p.cfg.Enabled && hasCredentials(p.cfg)
}
