package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/queue"
)

type stubSender struct {
	status model.EmailStatus
	err    error
	sent   []*model.EmailMessage
}

func (s *stubSender) Send(ctx context.Context, msg *model.EmailMessage) (*model.EmailLog, error) {
	s.sent = append(s.sent, msg)
	if s.err != nil {
		return nil, s.err
	}
	log := model.NewEmailLog(msg.CampaignID, msg.RecipientID, msg.To, msg.Subject, msg.From)
	log.Status = s.status
	return log, nil
}

func emailDelivery(t *testing.T, job *model.EmailJob) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return amqp.Delivery{Body: body, MessageId: "test-msg"}
}

func TestEmailJobProcessorSends(t *testing.T) {
	sender := &stubSender{status: model.StatusSent}
	pub := &recordingPublisher{}
	p := &EmailJobProcessor{Sender: sender, Queue: pub, Logger: testLogger()}

	job := model.NewEmailJob(nil, 1, "ana@example.com", "Hola", "<p>Hola</p>", "noreply@example.com")
	if err := p.Handle(context.Background(), emailDelivery(t, job)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if len(pub.messages) != 0 {
		t.Errorf("published %d retries, want 0", len(pub.messages))
	}
}

func TestEmailJobProcessorRetriesFailedSend(t *testing.T) {
	sender := &stubSender{status: model.StatusFailed}
	pub := &recordingPublisher{}
	p := &EmailJobProcessor{Sender: sender, Queue: pub, Logger: testLogger()}

	job := model.NewEmailJob(nil, 1, "ana@example.com", "Hola", "<p>Hola</p>", "noreply@example.com")
	if err := p.Handle(context.Background(), emailDelivery(t, job)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published %d retries, want 1", len(pub.messages))
	}
	retry := pub.messages[0]
	if retry.queue != queue.EmailQueue {
		t.Errorf("queue = %q, want %q", retry.queue, queue.EmailQueue)
	}
	if retry.delay != time.Second {
		t.Errorf("delay = %s, want 1s", retry.delay)
	}
	if got := retry.job.(*model.EmailJob).CurrentRetry; got != 1 {
		t.Errorf("current retry = %d, want 1", got)
	}
}

func TestEmailJobProcessorStopsAtMaxRetries(t *testing.T) {
	sender := &stubSender{status: model.StatusFailed}
	pub := &recordingPublisher{}
	p := &EmailJobProcessor{Sender: sender, Queue: pub, Logger: testLogger()}

	job := model.NewEmailJob(nil, 1, "ana@example.com", "Hola", "<p>Hola</p>", "noreply@example.com")
	job.CurrentRetry = job.MaxRetries
	if err := p.Handle(context.Background(), emailDelivery(t, job)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Errorf("published %d retries, want 0", len(pub.messages))
	}
}

func TestEmailJobProcessorPropagatesPersistenceError(t *testing.T) {
	sender := &stubSender{err: errors.New("db down")}
	p := &EmailJobProcessor{Sender: sender, Queue: &recordingPublisher{}, Logger: testLogger()}

	job := model.NewEmailJob(nil, 1, "ana@example.com", "Hola", "<p>Hola</p>", "noreply@example.com")
	if err := p.Handle(context.Background(), emailDelivery(t, job)); err == nil {
		t.Fatal("expected error to dead-letter the delivery")
	}
}

func TestEmailJobProcessorDropsMalformedBody(t *testing.T) {
	sender := &stubSender{status: model.StatusSent}
	p := &EmailJobProcessor{Sender: sender, Queue: &recordingPublisher{}, Logger: testLogger()}

	d := amqp.Delivery{Body: []byte("{not json"), MessageId: "bad"}
	if err := p.Handle(context.Background(), d); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("malformed body reached the sender")
	}
}

func TestCampaignJobProcessorDispatches(t *testing.T) {
	repo := newFakeCampaignRepo()
	c := sendingCampaign(repo)
	pub := &recordingPublisher{}
	svc := newOrchestrator(repo, &fakeContacts{}, &fakeTemplates{content: "<p>Hola</p>"}, pub)
	p := &CampaignJobProcessor{Campaigns: svc, Logger: testLogger()}

	body, _ := json.Marshal(batchJob(c.ID))
	if err := p.Handle(context.Background(), amqp.Delivery{Body: body}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if c.Status != model.CampaignSent {
		t.Errorf("status = %s, want %s", c.Status, model.CampaignSent)
	}
}

func TestCampaignJobProcessorDropsMalformedBody(t *testing.T) {
	p := &CampaignJobProcessor{Logger: testLogger()}
	if err := p.Handle(context.Background(), amqp.Delivery{Body: []byte("nope")}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}
