package model

import "time"

// EmailStatus is the lifecycle state of a single delivery attempt.
type EmailStatus string

const (
	StatusPending   EmailStatus = "PENDING"
	StatusSending   EmailStatus = "SENDING"
	StatusSent      EmailStatus = "SENT"
	StatusDelivered EmailStatus = "DELIVERED"
	StatusOpened    EmailStatus = "OPENED"
	StatusClicked   EmailStatus = "CLICKED"
	StatusBounced   EmailStatus = "BOUNCED"
	StatusFailed    EmailStatus = "FAILED"
	StatusCancelled EmailStatus = "CANCELLED"
)

// EmailLog is the durable record of one attempted email send.
type EmailLog struct {
	ID             int64       `db:"id" json:"id"`
	CampaignID     *int64      `db:"campaign_id" json:"campaign_id,omitempty"`
	RecipientID    int64       `db:"recipient_id" json:"recipient_id"`
	RecipientEmail string      `db:"recipient_email" json:"recipient_email"`
	Subject        string      `db:"subject" json:"subject"`
	FromEmail      string      `db:"from_email" json:"from_email"`
	FromName       string      `db:"from_name" json:"from_name,omitempty"`
	Status         EmailStatus `db:"status" json:"status"`
	Provider       string      `db:"provider" json:"provider,omitempty"`
	ExternalID     string      `db:"external_id" json:"external_id,omitempty"`
	SentAt         *time.Time  `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt    *time.Time  `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt       *time.Time  `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt      *time.Time  `db:"clicked_at" json:"clicked_at,omitempty"`
	BouncedAt      *time.Time  `db:"bounced_at" json:"bounced_at,omitempty"`
	ErrorMessage   string      `db:"error_message" json:"error_message,omitempty"`
	RetryCount     int         `db:"retry_count" json:"retry_count"`
	MaxRetries     int         `db:"max_retries" json:"max_retries"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// NewEmailLog builds a PENDING log for one outbound message.
func NewEmailLog(campaignID *int64, recipientID int64, toEmail, subject, fromEmail string) *EmailLog {
	now := time.Now()
	return &EmailLog{
		CampaignID:     campaignID,
		RecipientID:    recipientID,
		RecipientEmail: toEmail,
		Subject:        subject,
		FromEmail:      fromEmail,
		Status:         StatusPending,
		MaxRetries:     3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (l *EmailLog) MarkSending() {
	l.Status = StatusSending
	l.UpdatedAt = time.Now()
}

// MarkSent records the winning provider and its assigned external id.
func (l *EmailLog) MarkSent(externalID, provider string) {
	now := time.Now()
	l.Status = StatusSent
	l.SentAt = &now
	l.ExternalID = externalID
	l.Provider = provider
	l.UpdatedAt = now
}

func (l *EmailLog) MarkDelivered() {
	now := time.Now()
	l.Status = StatusDelivered
	l.DeliveredAt = &now
	l.UpdatedAt = now
}

// MarkOpened never regresses a log that already reached CLICKED.
func (l *EmailLog) MarkOpened() {
	now := time.Now()
	if l.Status != StatusClicked {
		l.Status = StatusOpened
	}
	l.OpenedAt = &now
	l.UpdatedAt = now
}

func (l *EmailLog) MarkClicked() {
	now := time.Now()
	l.Status = StatusClicked
	l.ClickedAt = &now
	l.UpdatedAt = now
}

func (l *EmailLog) MarkBounced(reason string) {
	now := time.Now()
	l.Status = StatusBounced
	l.BouncedAt = &now
	l.ErrorMessage = reason
	l.UpdatedAt = now
}

func (l *EmailLog) MarkFailed(errorMessage string) {
	l.Status = StatusFailed
	l.ErrorMessage = errorMessage
	l.UpdatedAt = time.Now()
}

// MarkCancelled is only legal from PENDING; it reports whether the
// transition happened.
func (l *EmailLog) MarkCancelled() bool {
	if l.Status != StatusPending {
		return false
	}
	l.Status = StatusCancelled
	l.UpdatedAt = time.Now()
	return true
}

func (l *EmailLog) IncrementRetry() {
	l.RetryCount++
	l.UpdatedAt = time.Now()
}

func (l *EmailLog) CanRetry() bool {
	return l.RetryCount < l.MaxRetries
}
