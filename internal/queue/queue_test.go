package queue

import (
	"testing"
	"time"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

type recordedPublish struct {
	queue string
	job   any
	delay time.Duration
}

type fakePublisher struct {
	published []recordedPublish
	err       error
}

func (f *fakePublisher) Publish(queue string, job any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{queue: queue, job: job})
	return nil
}

func (f *fakePublisher) PublishDelayed(queue string, job any, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{queue: queue, job: job, delay: delay})
	return nil
}

func TestBackoffSchedule(t *testing.T) {
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}
	for _, c := range cases {
		if got := Backoff(c.retry); got != c.want {
			t.Errorf("Backoff(%d) = %v, want %v", c.retry, got, c.want)
		}
	}
}

func TestRetryEmailJobSchedulesLastRetry(t *testing.T) {
	p := &fakePublisher{}
	job := model.NewEmailJob(nil, 7, "a@b.com", "s", "<p>x</p>", "noreply@x.com")
	job.CurrentRetry = job.MaxRetries - 1

	scheduled, err := RetryEmailJob(p, job)
	if err != nil {
		t.Fatalf("RetryEmailJob: %v", err)
	}
	if !scheduled {
		t.Fatal("expected a retry to be scheduled")
	}
	if len(p.published) != 1 {
		t.Fatalf("expected exactly one publish, got %d", len(p.published))
	}

	want := time.Duration(1<<uint(job.MaxRetries-1)) * time.Second
	if p.published[0].delay != want {
		t.Errorf("delay = %v, want %v", p.published[0].delay, want)
	}
	if p.published[0].queue != EmailQueue {
		t.Errorf("queue = %s, want %s", p.published[0].queue, EmailQueue)
	}
	if job.CurrentRetry != job.MaxRetries {
		t.Errorf("CurrentRetry = %d, want %d", job.CurrentRetry, job.MaxRetries)
	}
}

func TestRetryEmailJobExhausted(t *testing.T) {
	p := &fakePublisher{}
	job := model.NewEmailJob(nil, 7, "a@b.com", "s", "<p>x</p>", "noreply@x.com")
	job.CurrentRetry = job.MaxRetries

	scheduled, err := RetryEmailJob(p, job)
	if err != nil {
		t.Fatalf("RetryEmailJob: %v", err)
	}
	if scheduled {
		t.Fatal("job at retry ceiling must never be re-enqueued")
	}
	if len(p.published) != 0 {
		t.Fatalf("expected no publishes, got %d", len(p.published))
	}
}

func TestScheduleCampaignJobUsesDelay(t *testing.T) {
	p := &fakePublisher{}
	job := model.NewCampaignJob(1, 2, model.JobStartCampaign)
	at := time.Now().Add(90 * time.Second)

	if err := ScheduleCampaignJob(p, job, at); err != nil {
		t.Fatalf("ScheduleCampaignJob: %v", err)
	}
	if len(p.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(p.published))
	}
	if p.published[0].queue != CampaignQueue {
		t.Errorf("queue = %s, want %s", p.published[0].queue, CampaignQueue)
	}
	// Delay is computed from the wall clock, allow slack.
	if p.published[0].delay < 85*time.Second || p.published[0].delay > 90*time.Second {
		t.Errorf("delay = %v, want ~90s", p.published[0].delay)
	}
}
