package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appErrors "github.com/jcbodero/sitema-correos-masivos/internal/errors"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/provider"
	"github.com/jcbodero/sitema-correos-masivos/internal/ratelimit"
	"github.com/jcbodero/sitema-correos-masivos/internal/repository"
)

// Webhook event kinds accepted by HandleEvent.
const (
	EventDelivered = "delivered"
	EventOpened    = "opened"
	EventClicked   = "clicked"
	EventBounced   = "bounced"
)

// EmailSender is the delivery engine contract the job consumer depends on.
type EmailSender interface {
	Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailLog, error)
}

// EmailService is the delivery engine: it walks providers in priority
// order, respecting availability and rate limits, and records every
// outcome on an EmailLog. A fully failed send is not an error; callers
// inspect the returned log's status.
type EmailService struct {
	Logs       repository.EmailLogRepositoryInterface
	Registry   *provider.Registry
	Limiter    ratelimit.Limiter
	Timeout    time.Duration
	BatchPause time.Duration
	Logger     *slog.Logger

	tracer trace.Tracer
}

func NewEmailService(logs repository.EmailLogRepositoryInterface, registry *provider.Registry, limiter ratelimit.Limiter, logger *slog.Logger) *EmailService {
	return &EmailService{
		Logs:       logs,
		Registry:   registry,
		Limiter:    limiter,
		Timeout:    15 * time.Second,
		BatchPause: 50 * time.Millisecond,
		Logger:     logger,
		tracer:     otel.Tracer("github.com/jcbodero/sitema-correos-masivos"),
	}
}

// Send attempts one message. Errors are returned only for persistence
// failures; provider failures end up as status FAILED on the log.
func (s *EmailService) Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailLog, error) {
	ctx, span := s.tracer.Start(ctx, "email.Send",
		trace.WithAttributes(
			attribute.String("email.to", msg.To),
			attribute.String("email.subject", msg.Subject),
		))
	defer span.End()

	log := model.NewEmailLog(msg.CampaignID, msg.RecipientID, msg.To, msg.Subject, msg.From)
	log.FromName = msg.FromName
	if err := s.Logs.Create(log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, fmt.Errorf("creating email log: %w", err)
	}

	if err := s.attemptProviders(ctx, msg, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, err
	}

	if log.Status == model.StatusSent {
		span.SetAttributes(
			attribute.String("email.provider", log.Provider),
			attribute.String("email.external_id", log.ExternalID),
		)
		span.SetStatus(codes.Ok, "sent")
	} else {
		span.SetStatus(codes.Error, "all providers failed")
	}
	return log, nil
}

// attemptProviders runs one pass over the registry, first success wins.
// It mutates and persists the log; the returned error is persistence-only.
func (s *EmailService) attemptProviders(ctx context.Context, msg *model.EmailMessage, log *model.EmailLog) error {
	var failures []string

	for _, p := range s.Registry.Available() {
		if !p.IsAvailable() {
			continue
		}
		ok, err := s.Limiter.CanSend(ctx, p.Name())
		if err != nil {
			s.Logger.Error("rate limiter check failed",
				slog.String("provider", p.Name()), slog.Any("error", err))
			continue
		}
		if !ok {
			s.Logger.Warn("provider over rate limit, skipping", slog.String("provider", p.Name()))
			continue
		}

		log.MarkSending()
		if err := s.Logs.Update(log); err != nil {
			return fmt.Errorf("updating email log: %w", err)
		}

		result, sendErr := s.sendWithTimeout(ctx, p, msg)
		if sendErr != nil {
			// Failure of one provider never aborts the send; fall
			// through to the next one.
			s.Logger.Warn("provider send failed",
				slog.String("provider", p.DisplayName()),
				slog.String("to", msg.To),
				slog.Any("error", sendErr))
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), sendErr))
			continue
		}

		log.MarkSent(result.ExternalID, p.Name())
		if err := s.Limiter.RecordSent(ctx, p.Name()); err != nil {
			s.Logger.Error("failed to record send against rate limit",
				slog.String("provider", p.Name()), slog.Any("error", err))
		}
		if err := s.Logs.Update(log); err != nil {
			return fmt.Errorf("updating email log: %w", err)
		}

		s.Logger.Info("email sent",
			slog.String("provider", p.DisplayName()),
			slog.String("to", msg.To),
			slog.String("external_id", result.ExternalID))
		return nil
	}

	reason := "no providers available"
	if len(failures) > 0 {
		reason = "all providers failed: " + strings.Join(failures, "; ")
	}
	log.MarkFailed(reason)
	if err := s.Logs.Update(log); err != nil {
		return fmt.Errorf("updating email log: %w", err)
	}

	s.Logger.Error("email delivery failed", slog.String("to", msg.To), slog.String("reason", reason))
	return nil
}

func (s *EmailService) sendWithTimeout(ctx context.Context, p provider.Provider, msg *model.EmailMessage) (*provider.SendResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return p.Send(attemptCtx, msg)
}

// SendBatch processes messages in input order with a small pause between
// them. Every input yields exactly one log; a failure never aborts the rest.
func (s *EmailService) SendBatch(ctx context.Context, msgs []*model.EmailMessage) ([]*model.EmailLog, error) {
	logs := make([]*model.EmailLog, 0, len(msgs))
	for i, msg := range msgs {
		if i > 0 && s.BatchPause > 0 {
			time.Sleep(s.BatchPause)
		}
		log, err := s.Send(ctx, msg)
		if err != nil {
			return logs, err
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// RetryFailedEmails re-attempts every FAILED log of the campaign that still
// has retry budget. This is the manual operator trigger; it bypasses the
// job queue and runs the provider loop directly.
func (s *EmailService) RetryFailedEmails(ctx context.Context, campaignID int64) (int, error) {
	failed, err := s.Logs.FindFailedForRetry(campaignID)
	if err != nil {
		return 0, fmt.Errorf("loading failed emails: %w", err)
	}

	s.Logger.Info("retrying failed emails",
		slog.Int("count", len(failed)), slog.Int64("campaign_id", campaignID))

	retried := 0
	for _, log := range failed {
		msg := &model.EmailMessage{
			To:          log.RecipientEmail,
			Subject:     log.Subject,
			From:        log.FromEmail,
			FromName:    log.FromName,
			CampaignID:  log.CampaignID,
			RecipientID: log.RecipientID,
		}
		log.IncrementRetry()
		if err := s.attemptProviders(ctx, msg, log); err != nil {
			return retried, err
		}
		if log.Status == model.StatusSent {
			retried++
		}
	}
	return retried, nil
}

func (s *EmailService) GetEmailLog(ctx context.Context, id int64) (*model.EmailLog, error) {
	log, err := s.Logs.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("loading email log: %w", err)
	}
	if log == nil {
		return nil, &appErrors.ErrEmailLogNotFound{ID: id}
	}
	return log, nil
}

// CampaignStats returns per-status email counts for one campaign.
func (s *EmailService) CampaignStats(ctx context.Context, campaignID int64) (map[string]int, error) {
	counts, err := s.Logs.CountByCampaignAndStatus(campaignID)
	if err != nil {
		return nil, fmt.Errorf("counting campaign emails: %w", err)
	}
	return counts, nil
}

// HandleEvent applies one webhook event to the log matching externalID.
// Unknown external ids are ignored so replayed or stale events are harmless.
func (s *EmailService) HandleEvent(ctx context.Context, externalID, event, reason string) error {
	log, err := s.Logs.GetByExternalID(externalID)
	if err != nil {
		return fmt.Errorf("looking up email log: %w", err)
	}
	if log == nil {
		s.Logger.Debug("event for unknown external id", slog.String("external_id", externalID))
		return nil
	}

	switch event {
	case EventDelivered:
		log.MarkDelivered()
	case EventOpened:
		log.MarkOpened()
	case EventClicked:
		log.MarkClicked()
	case EventBounced:
		log.MarkBounced(reason)
	default:
		return fmt.Errorf("unknown event kind %q", event)
	}

	if err := s.Logs.Update(log); err != nil {
		return fmt.Errorf("updating email log: %w", err)
	}
	s.Logger.Debug("delivery event processed",
		slog.String("external_id", externalID), slog.String("event", event))
	return nil
}
