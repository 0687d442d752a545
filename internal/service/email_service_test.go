package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLogRepo struct {
	logs   map[int64]*model.EmailLog
	nextID int64
	failed []*model.EmailLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{logs: make(map[int64]*model.EmailLog)}
}

func (r *fakeLogRepo) Create(log *model.EmailLog) error {
	r.nextID++
	log.ID = r.nextID
	r.logs[log.ID] = log
	return nil
}

func (r *fakeLogRepo) Update(log *model.EmailLog) error {
	r.logs[log.ID] = log
	return nil
}

func (r *fakeLogRepo) GetByID(id int64) (*model.EmailLog, error) {
	return r.logs[id], nil
}

func (r *fakeLogRepo) GetByExternalID(externalID string) (*model.EmailLog, error) {
	for _, log := range r.logs {
		if log.ExternalID == externalID {
			return log, nil
		}
	}
	return nil, nil
}

func (r *fakeLogRepo) FindFailedForRetry(campaignID int64) ([]*model.EmailLog, error) {
	return r.failed, nil
}

func (r *fakeLogRepo) CountByCampaignAndStatus(campaignID int64) (map[string]int, error) {
	counts := make(map[string]int)
	for _, log := range r.logs {
		if log.CampaignID != nil && *log.CampaignID == campaignID {
			counts[string(log.Status)]++
		}
	}
	return counts, nil
}

type fakeProvider struct {
	name      string
	priority  int
	available bool
	err       error
	sent      []*model.EmailMessage
}

func (p *fakeProvider) Send(ctx context.Context, msg *model.EmailMessage) (*provider.SendResult, error) {
	p.sent = append(p.sent, msg)
	if p.err != nil {
		return nil, p.err
	}
	return &provider.SendResult{ExternalID: p.name + "-msg-1", Provider: p.name, Timestamp: time.Now()}, nil
}

func (p *fakeProvider) Name() string        { return p.name }
func (p *fakeProvider) DisplayName() string { return p.name }
func (p *fakeProvider) Priority() int       { return p.priority }
func (p *fakeProvider) IsAvailable() bool   { return p.available }

type fakeLimiter struct {
	denied   map[string]bool
	recorded []string
}

func (l *fakeLimiter) CanSend(ctx context.Context, provider string) (bool, error) {
	return !l.denied[provider], nil
}

func (l *fakeLimiter) RecordSent(ctx context.Context, provider string) error {
	l.recorded = append(l.recorded, provider)
	return nil
}

func newEngine(repo *fakeLogRepo, limiter *fakeLimiter, providers ...provider.Provider) *EmailService {
	svc := NewEmailService(repo, provider.NewRegistryFromProviders(providers...), limiter, testLogger())
	svc.BatchPause = 0
	return svc
}

func TestSendFirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	second := &fakeProvider{name: "MAILGUN", priority: 2, available: true}
	repo := newFakeLogRepo()
	limiter := &fakeLimiter{}
	svc := newEngine(repo, limiter, first, second)

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if log.Status != model.StatusSent {
		t.Fatalf("status = %s, want %s", log.Status, model.StatusSent)
	}
	if log.Provider != "SENDGRID" {
		t.Errorf("provider = %q, want SENDGRID", log.Provider)
	}
	if log.ExternalID != "SENDGRID-msg-1" {
		t.Errorf("external id = %q", log.ExternalID)
	}
	if len(second.sent) != 0 {
		t.Errorf("second provider attempted %d sends, want 0", len(second.sent))
	}
	if len(limiter.recorded) != 1 || limiter.recorded[0] != "SENDGRID" {
		t.Errorf("recorded sends = %v, want [SENDGRID]", limiter.recorded)
	}
}

func TestSendFailsOverToNextProvider(t *testing.T) {
	first := &fakeProvider{name: "SENDGRID", priority: 1, available: true, err: errors.New("quota exceeded")}
	second := &fakeProvider{name: "MAILGUN", priority: 2, available: true}
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{}, first, second)

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if log.Status != model.StatusSent {
		t.Fatalf("status = %s, want %s", log.Status, model.StatusSent)
	}
	if log.Provider != "MAILGUN" {
		t.Errorf("provider = %q, want MAILGUN", log.Provider)
	}
	if len(first.sent) != 1 {
		t.Errorf("first provider attempts = %d, want 1", len(first.sent))
	}
}

func TestSendAllProvidersFail(t *testing.T) {
	first := &fakeProvider{name: "SENDGRID", priority: 1, available: true, err: errors.New("boom")}
	second := &fakeProvider{name: "MAILGUN", priority: 2, available: true, err: errors.New("down")}
	repo := newFakeLogRepo()
	limiter := &fakeLimiter{}
	svc := newEngine(repo, limiter, first, second)

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send returned error for provider failure: %v", err)
	}
	if log.Status != model.StatusFailed {
		t.Fatalf("status = %s, want %s", log.Status, model.StatusFailed)
	}
	if !strings.Contains(log.ErrorMessage, "SENDGRID") || !strings.Contains(log.ErrorMessage, "MAILGUN") {
		t.Errorf("error message %q does not name both providers", log.ErrorMessage)
	}
	if len(limiter.recorded) != 0 {
		t.Errorf("recorded sends = %v, want none", limiter.recorded)
	}
}

func TestSendSkipsRateLimitedProvider(t *testing.T) {
	first := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	second := &fakeProvider{name: "MAILGUN", priority: 2, available: true}
	repo := newFakeLogRepo()
	limiter := &fakeLimiter{denied: map[string]bool{"SENDGRID": true}}
	svc := newEngine(repo, limiter, first, second)

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if log.Provider != "MAILGUN" {
		t.Errorf("provider = %q, want MAILGUN", log.Provider)
	}
	if len(first.sent) != 0 {
		t.Errorf("rate-limited provider was attempted")
	}
}

func TestSendNoProvidersAvailable(t *testing.T) {
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{})

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if log.Status != model.StatusFailed {
		t.Fatalf("status = %s, want %s", log.Status, model.StatusFailed)
	}
	if log.ErrorMessage != "no providers available" {
		t.Errorf("error message = %q", log.ErrorMessage)
	}
}

func TestSendBatchPreservesOrder(t *testing.T) {
	p := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{}, p)

	msgs := []*model.EmailMessage{
		{To: "a@example.com", Subject: "1", From: "noreply@example.com"},
		{To: "b@example.com", Subject: "2", From: "noreply@example.com"},
		{To: "c@example.com", Subject: "3", From: "noreply@example.com"},
	}
	logs, err := svc.SendBatch(context.Background(), msgs)
	if err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(logs))
	}
	for i, log := range logs {
		if log.RecipientEmail != msgs[i].To {
			t.Errorf("log %d recipient = %q, want %q", i, log.RecipientEmail, msgs[i].To)
		}
	}
}

func TestRetryFailedEmails(t *testing.T) {
	p := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{}, p)

	campaignID := int64(7)
	failed := model.NewEmailLog(&campaignID, 42, "ana@example.com", "Hola", "noreply@example.com")
	failed.ID = 1
	failed.MarkFailed("all providers failed")
	repo.logs[failed.ID] = failed
	repo.failed = []*model.EmailLog{failed}

	retried, err := svc.RetryFailedEmails(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("RetryFailedEmails: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	if failed.Status != model.StatusSent {
		t.Errorf("status = %s, want %s", failed.Status, model.StatusSent)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", failed.RetryCount)
	}
}

func TestHandleEventLifecycle(t *testing.T) {
	p := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{}, p)

	log, err := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	externalID := log.ExternalID

	steps := []struct {
		event string
		want  model.EmailStatus
	}{
		{EventDelivered, model.StatusDelivered},
		{EventOpened, model.StatusOpened},
		{EventClicked, model.StatusClicked},
	}
	for _, step := range steps {
		if err := svc.HandleEvent(context.Background(), externalID, step.event, ""); err != nil {
			t.Fatalf("HandleEvent(%s): %v", step.event, err)
		}
		if log.Status != step.want {
			t.Errorf("after %s status = %s, want %s", step.event, log.Status, step.want)
		}
	}

	// A late open must not regress a clicked email.
	if err := svc.HandleEvent(context.Background(), externalID, EventOpened, ""); err != nil {
		t.Fatalf("HandleEvent(opened): %v", err)
	}
	if log.Status != model.StatusClicked {
		t.Errorf("status = %s, want %s", log.Status, model.StatusClicked)
	}

	if err := svc.HandleEvent(context.Background(), externalID, EventBounced, "mailbox full"); err != nil {
		t.Fatalf("HandleEvent(bounced): %v", err)
	}
	if log.Status != model.StatusBounced {
		t.Errorf("status = %s, want %s", log.Status, model.StatusBounced)
	}
	if log.ErrorMessage != "mailbox full" {
		t.Errorf("error message = %q", log.ErrorMessage)
	}
}

func TestHandleEventUnknownExternalID(t *testing.T) {
	svc := newEngine(newFakeLogRepo(), &fakeLimiter{})
	if err := svc.HandleEvent(context.Background(), "missing", EventDelivered, ""); err != nil {
		t.Fatalf("HandleEvent for unknown id: %v", err)
	}
}

func TestHandleEventUnknownKind(t *testing.T) {
	p := &fakeProvider{name: "SENDGRID", priority: 1, available: true}
	repo := newFakeLogRepo()
	svc := newEngine(repo, &fakeLimiter{}, p)

	log, _ := svc.Send(context.Background(), &model.EmailMessage{
		To: "ana@example.com", Subject: "Hola", From: "noreply@example.com",
	})
	if err := svc.HandleEvent(context.Background(), log.ExternalID, "sniffed", ""); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}
