package provider

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// SMTPProvider talks plain SMTP. In the standard deployment it points at
// MailHog and needs no credentials; with auth configured it works against
// any relay.
type SMTPProvider struct {
	cfg config.ProviderConfig
}

func NewSMTPProvider(cfg config.ProviderConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error) {
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var auth smtp.Auth
	if p.cfg.Username != "" && p.cfg.Password != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}

	// SMTP has no per-send external id, so one is minted here. Webhook
	// correlation still works because the same id lands on the EmailLog.
	externalID := uuid.NewString()

	payload := buildMessage(msg, externalID)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, msg.From, []string{msg.To}, payload)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("smtp send failed: %w", err)
		}
	}

	return &SendResult{
		ExternalID: externalID,
		Provider:   p.Name(),
		Timestamp:  time.Now(),
	}, nil
}

func buildMessage(msg *model.EmailMessage, messageID string) []byte {
	var b strings.Builder

	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Message-ID: <%s@correos-masivos>\r\n", messageID)
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLContent != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTMLContent)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.TextContent)
	}
	b.WriteString("\r\n")

	return []byte(b.String())
}

func (p *SMTPProvider) Name() string        { return p.cfg.Name }
func (p *SMTPProvider) DisplayName() string { return p.cfg.DisplayName }
func (p *SMTPProvider) Priority() int       { return p.cfg.Priority }

func (p *SMTPProvider) IsAvailable() bool {
	return p.cfg.Enabled && hasCredentials(p.cfg)
}
