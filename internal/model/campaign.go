package model

import "time"

// CampaignStatus is the campaign-level state, driven by control jobs.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignPaused    CampaignStatus = "PAUSED"
	CampaignSent      CampaignStatus = "SENT"
	CampaignCancelled CampaignStatus = "CANCELLED"
	CampaignFailed    CampaignStatus = "FAILED"
)

type Campaign struct {
	ID          int64          `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Subject     string         `db:"subject" json:"subject"`
	Description string         `db:"description" json:"description,omitempty"`
	TemplateID  int64          `db:"template_id" json:"template_id"`
	UserID      int64          `db:"user_id" json:"user_id"`
	Status      CampaignStatus `db:"status" json:"status"`
	ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CanStart reports whether a start signal is legal in the current state.
func (c *Campaign) CanStart() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled || c.Status == CampaignPaused
}

func (c *Campaign) CanPause() bool {
	return c.Status == CampaignSending
}

func (c *Campaign) CanCancel() bool {
	return c.Status != CampaignSent && c.Status != CampaignCancelled
}

// TargetType tags a campaign target-list entry.
type TargetType string

const (
	TargetList    TargetType = "LIST"
	TargetSegment TargetType = "SEGMENT"
	TargetContact TargetType = "CONTACT"
)

// CampaignTargetList is one audience reference attached to a campaign.
// LIST and SEGMENT expand to many recipients, CONTACT to exactly one.
type CampaignTargetList struct {
	ID         int64      `db:"id" json:"id"`
	CampaignID int64      `db:"campaign_id" json:"campaign_id"`
	TargetType TargetType `db:"target_type" json:"target_type"`
	TargetID   int64      `db:"target_id" json:"target_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
