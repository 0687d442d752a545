package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// MailgunProvider sends through the Mailgun messages API.
type MailgunProvider struct {
	client mailgun.Mailgun
	cfg    config.ProviderConfig
}

func NewMailgunProvider(cfg config.ProviderConfig) *MailgunProvider {
	return &MailgunProvider{
		client: mailgun.NewMailgun(cfg.Domain, cfg.Password),
		cfg:    cfg,
	}
}

func (p *MailgunProvider) Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error) {
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	message := p.client.NewMessage(from, msg.Subject, msg.TextContent, msg.To)
	if msg.HTMLContent != "" {
		message.SetHtml(msg.HTMLContent)
	}
	if msg.ReplyTo != "" {
		message.SetReplyTo(msg.ReplyTo)
	}
	message.SetTracking(true)
	message.SetTrackingOpens(msg.TrackOpens)
	message.SetTrackingClicks(msg.TrackClicks)

	_, id, err := p.client.Send(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("mailgun send failed: %w", err)
	}

	return &SendResult{
		ExternalID: id,
		Provider:   p.Name(),
		Timestamp:  time.Now(),
	}, nil
}

func (p *MailgunProvider) Name() string        { return p.cfg.Name }
func (p *MailgunProvider) DisplayName() string { return p.cfg.DisplayName }
func (p *MailgunProvider) Priority() int       { return p.cfg.Priority }

func (p *MailgunProvider) IsAvailable() bool {
	return p.cfg.Enabled && hasCredentials(p.cfg) && p.cfg.Domain != ""
}
