package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/queue"
)

// EmailJobProcessor consumes the email queue. Delivery failures are
// re-enqueued with backoff until the job's retry budget runs out; the
// per-attempt outcome is already recorded on an EmailLog by the engine.
type EmailJobProcessor struct {
	Sender EmailSender
	Queue  queue.Publisher
	Logger *slog.Logger
}

func (p *EmailJobProcessor) Handle(ctx context.Context, d amqp.Delivery) error {
	var job model.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		// Malformed payloads can never succeed; drop instead of dead-lettering.
		p.Logger.Error("dropping malformed email job",
			slog.String("message_id", d.MessageId), slog.Any("error", err))
		return nil
	}

	log, err := p.Sender.Send(ctx, job.Message())
	if err != nil {
		return err
	}

	if log.Status == model.StatusFailed {
		scheduled, err := queue.RetryEmailJob(p.Queue, &job)
		if err != nil {
			return err
		}
		if scheduled {
			p.Logger.Info("email job re-enqueued",
				slog.String("to", job.ToEmail), slog.Int("retry", job.CurrentRetry))
		} else {
			p.Logger.Warn("email job exhausted retries",
				slog.String("to", job.ToEmail), slog.Int("max_retries", job.MaxRetries))
		}
	}
	return nil
}

// CampaignJobProcessor consumes the campaign queue and hands control jobs
// to the orchestrator. A returned error dead-letters the delivery.
type CampaignJobProcessor struct {
	Campaigns *CampaignService
	Logger    *slog.Logger
}

func (p *CampaignJobProcessor) Handle(ctx context.Context, d amqp.Delivery) error {
	var job model.CampaignJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		p.Logger.Error("dropping malformed campaign job",
			slog.String("message_id", d.MessageId), slog.Any("error", err))
		return nil
	}
	return p.Campaigns.HandleJob(ctx, &job)
}
