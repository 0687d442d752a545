package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// Queue and exchange names. Each logical queue dead-letters into its DLQ on
// rejection or TTL expiry.
const (
	EmailQueue    = "email.send"
	EmailDLQ      = "email.send.dlq"
	CampaignQueue = "campaign.process"
	CampaignDLQ   = "campaign.process.dlq"

	EmailExchange    = "email.exchange"
	CampaignExchange = "campaign.exchange"

	emailTTL    = 300000 // ms, 5 minutes
	campaignTTL = 600000 // ms, 10 minutes
)

// Publisher is the producer side of the job queue.
type Publisher interface {
	Publish(queue string, job any) error
	// PublishDelayed holds the message back for at least delay before it
	// becomes consumable.
	PublishDelayed(queue string, job any, delay time.Duration) error
}

// RabbitQueue publishes jobs to RabbitMQ. Delayed delivery goes through the
// delayed-message exchange plugin (x-delay header), the same mechanism used
// for both retry backoff and scheduled campaigns.
type RabbitQueue struct {
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewRabbitQueue(conn *amqp.Connection, logger *slog.Logger) (*RabbitQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := Setup(ch); err != nil {
		return nil, fmt.Errorf("queue topology setup failed: %w", err)
	}
	return &RabbitQueue{ch: ch, logger: logger}, nil
}

// Setup declares the exchanges, queues, DLQs and bindings. Declarations are
// idempotent, so both producers and consumers run it.
func Setup(ch *amqp.Channel) error {
	exchanges := map[string]string{
		EmailExchange:    EmailQueue,
		CampaignExchange: CampaignQueue,
	}
	for exchange := range exchanges {
		if err := ch.ExchangeDeclare(
			exchange,
			"x-delayed-message",
			true,
			false,
			false,
			false,
			amqp.Table{"x-delayed-type": "direct"},
		); err != nil {
			return err
		}
	}

	queues := []struct {
		name, dlq, exchange string
		ttl                 int
	}{
		{EmailQueue, EmailDLQ, EmailExchange, emailTTL},
		{CampaignQueue, CampaignDLQ, CampaignExchange, campaignTTL},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": q.dlq,
			"x-message-ttl":             int32(q.ttl),
		}); err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(q.dlq, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(q.name, q.name, q.exchange, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *RabbitQueue) Publish(queue string, job any) error {
	return q.publish(queue, job, 0)
}

func (q *RabbitQueue) PublishDelayed(queue string, job any, delay time.Duration) error {
	if delay <= 0 {
		return q.publish(queue, job, 0)
	}
	return q.publish(queue, job, delay)
}

func (q *RabbitQueue) publish(queue string, job any, delay time.Duration) error {
	exchange, err := exchangeFor(queue)
	if err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	headers := amqp.Table{}
	if delay > 0 {
		headers["x-delay"] = delay.Milliseconds()
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	}

	if err := q.ch.Publish(exchange, queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	q.logger.Debug("job published", slog.String("queue", queue), slog.Duration("delay", delay))
	return nil
}

func exchangeFor(queue string) (string, error) {
	switch queue {
	case EmailQueue:
		return EmailExchange, nil
	case CampaignQueue:
		return CampaignExchange, nil
	default:
		return "", fmt.Errorf("unknown queue %q", queue)
	}
}

// Backoff is the shared retry schedule: 2^retry seconds with a 1s base.
func Backoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return time.Duration(1<<uint(retry)) * time.Second
}

// RetryEmailJob republishes a failed job with exponential backoff. The delay
// is computed from the retry count as read off the failed job, then the
// count is incremented; a job at its ceiling is never re-enqueued. Returns
// whether a retry was scheduled.
func RetryEmailJob(p Publisher, job *model.EmailJob) (bool, error) {
	if job.HasReachedMaxRetries() {
		return false, nil
	}

	delay := Backoff(job.CurrentRetry)
	job.CurrentRetry++
	job.ScheduledAt = time.Now().Add(delay)

	if err := p.PublishDelayed(EmailQueue, job, delay); err != nil {
		return false, err
	}
	return true, nil
}

// ScheduleCampaignJob realizes "run at clock time T" with the same delayed
// delivery mechanism as retries.
func ScheduleCampaignJob(p Publisher, job *model.CampaignJob, at time.Time) error {
	job.ScheduledAt = at
	return p.PublishDelayed(CampaignQueue, job, time.Until(at))
}
