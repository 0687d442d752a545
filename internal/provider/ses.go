package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/jcbodero/sitema-correos-masivos/internal/config"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// SESProvider sends through Amazon SES.
type SESProvider struct {
	client *ses.Client
	cfg    config.ProviderConfig
}

func NewSESProvider(cfg config.ProviderConfig) (*SESProvider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		accessKey, secretKey := cfg.Username, cfg.Password
		awsCfg.Credentials = aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     accessKey,
				SecretAccessKey: secretKey,
			}, nil
		})
	}

	return &SESProvider{
		client: ses.NewFromConfig(awsCfg),
		cfg:    cfg,
	}, nil
}

func (p *SESProvider) Send(ctx context.Context, msg *model.EmailMessage) (*SendResult, error) {
	source := msg.From
	if msg.FromName != "" {
		source = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body:    &types.Body{},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if msg.TextContent != "" {
		input.Message.Body.Text = &types.Content{Data: aws.String(msg.TextContent)}
	}
	if msg.HTMLContent != "" {
		input.Message.Body.Html = &types.Content{Data: aws.String(msg.HTMLContent)}
	}

	output, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send failed: %w", err)
	}

	return &SendResult{
		ExternalID: aws.ToString(output.MessageId),
		Provider:   p.Name(),
		Timestamp:  time.Now(),
	}, nil
}

func (p *SESProvider) Name() string        { return p.cfg.Name }
func (p *SESProvider) DisplayName() string { return p.cfg.DisplayName }
func (p *SESProvider) Priority() int       { return p.cfg.Priority }

func (p *SESProvider) IsAvailable() bool {
	return p.cfg.Enabled && hasCredentials(p.cfg)
}
