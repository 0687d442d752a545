package model

import "time"

// EmailJob is the queue message for one recipient send.
type EmailJob struct {
	CampaignID          *int64            `json:"campaign_id,omitempty"`
	RecipientID         int64             `json:"recipient_id"`
	ToEmail             string            `json:"to_email"`
	Subject             string            `json:"subject"`
	HTMLContent         string            `json:"html_content"`
	TextContent         string            `json:"text_content,omitempty"`
	FromEmail           string            `json:"from_email"`
	FromName            string            `json:"from_name,omitempty"`
	ReplyTo             string            `json:"reply_to,omitempty"`
	PersonalizationData map[string]string `json:"personalization_data,omitempty"`
	Priority            int               `json:"priority"`
	MaxRetries          int               `json:"max_retries"`
	CurrentRetry        int               `json:"current_retry"`
	ScheduledAt         time.Time         `json:"scheduled_at"`
	CreatedAt           time.Time         `json:"created_at"`
	TrackOpens          bool              `json:"track_opens"`
	TrackClicks         bool              `json:"track_clicks"`
}

// NewEmailJob builds a job with the default priority and retry ceiling.
func NewEmailJob(campaignID *int64, recipientID int64, toEmail, subject, htmlContent, fromEmail string) *EmailJob {
	now := time.Now()
	return &EmailJob{
		CampaignID:   campaignID,
		RecipientID:  recipientID,
		ToEmail:      toEmail,
		Subject:      subject,
		HTMLContent:  htmlContent,
		FromEmail:    fromEmail,
		Priority:     5,
		MaxRetries:   3,
		CurrentRetry: 0,
		ScheduledAt:  now,
		CreatedAt:    now,
		TrackOpens:   true,
		TrackClicks:  true,
	}
}

func (j *EmailJob) HasReachedMaxRetries() bool {
	return j.CurrentRetry >= j.MaxRetries
}

// Message converts the job into the message the delivery engine consumes.
func (j *EmailJob) Message() *EmailMessage {
	return &EmailMessage{
		To:                  j.ToEmail,
		Subject:             j.Subject,
		HTMLContent:         j.HTMLContent,
		TextContent:         j.TextContent,
		From:                j.FromEmail,
		FromName:            j.FromName,
		ReplyTo:             j.ReplyTo,
		PersonalizationData: j.PersonalizationData,
		CampaignID:          j.CampaignID,
		RecipientID:         j.RecipientID,
		TrackOpens:          j.TrackOpens,
		TrackClicks:         j.TrackClicks,
	}
}

// CampaignJobType selects the control action carried by a CampaignJob.
type CampaignJobType string

const (
	JobStartCampaign  CampaignJobType = "START_CAMPAIGN"
	JobProcessBatch   CampaignJobType = "PROCESS_BATCH"
	JobPauseCampaign  CampaignJobType = "PAUSE_CAMPAIGN"
	JobResumeCampaign CampaignJobType = "RESUME_CAMPAIGN"
	JobCancelCampaign CampaignJobType = "CANCEL_CAMPAIGN"
)

// CampaignJob is the queue message for one campaign-level control action.
type CampaignJob struct {
	CampaignID          int64           `json:"campaign_id"`
	UserID              int64           `json:"user_id"`
	CampaignName        string          `json:"campaign_name,omitempty"`
	JobType             CampaignJobType `json:"job_type"`
	BatchSize           int             `json:"batch_size"`
	DelayBetweenBatches int             `json:"delay_between_batches"` // seconds
	Priority            int             `json:"priority"`
	ScheduledAt         time.Time       `json:"scheduled_at"`
	CreatedAt           time.Time       `json:"created_at"`
}

func NewCampaignJob(campaignID, userID int64, jobType CampaignJobType) *CampaignJob {
	now := time.Now()
	return &CampaignJob{
		CampaignID:          campaignID,
		UserID:              userID,
		JobType:             jobType,
		BatchSize:           100,
		DelayBetweenBatches: 60,
		Priority:            5,
		ScheduledAt:         now,
		CreatedAt:           now,
	}
}
