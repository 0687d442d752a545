package repository

import (
	"database/sql"
	"time"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// CampaignRepositoryInterface is the orchestrator's view of campaign
// persistence.
type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id int64) (*model.Campaign, error)
	UpdateStatus(id int64, status model.CampaignStatus) error
	MarkComplete(id int64) error
	GetTargetLists(campaignID int64) ([]*model.CampaignTargetList, error)
	AddTargetList(campaignID int64, targetType model.TargetType, targetID int64) error
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}

	query := `
        INSERT INTO campaigns
        (name, subject, description, template_id, user_id, status, scheduled_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Subject, c.Description, c.TemplateID, c.UserID,
		c.Status, c.ScheduledAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int64) (*model.Campaign, error) {
	query := `
        SELECT id, name, subject, description, template_id, user_id, status,
               scheduled_at, started_at, completed_at, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	var description sql.NullString
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Subject, &description, &c.TemplateID, &c.UserID,
		&c.Status, &c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Description = description.String
	return &c, nil
}

func (r *CampaignRepository) UpdateStatus(id int64, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), id)
	return err
}

// MarkComplete means fully enqueued, not fully delivered; per-recipient
// delivery is tracked on email_logs.
func (r *CampaignRepository) MarkComplete(id int64) error {
	now := time.Now()
	query := `UPDATE campaigns SET status=$1, completed_at=$2, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, model.CampaignSent, now, id)
	return err
}

func (r *CampaignRepository) GetTargetLists(campaignID int64) ([]*model.CampaignTargetList, error) {
	query := `
        SELECT id, campaign_id, target_type, target_id, created_at
        FROM campaign_target_lists
        WHERE campaign_id=$1
        ORDER BY id
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []*model.CampaignTargetList
	for rows.Next() {
		var t model.CampaignTargetList
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.TargetType, &t.TargetID, &t.CreatedAt); err != nil {
			return nil, err
		}
		targets = append(targets, &t)
	}
	return targets, rows.Err()
}

func (r *CampaignRepository) AddTargetList(campaignID int64, targetType model.TargetType, targetID int64) error {
	query := `
        INSERT INTO campaign_target_lists (campaign_id, target_type, target_id, created_at)
        SELECT $1, $2, $3, $4
        WHERE NOT EXISTS (
            SELECT 1 FROM campaign_target_lists
            WHERE campaign_id=$1 AND target_type=$2 AND target_id=$3
        )
    `
	_, err := r.DB.Exec(query, campaignID, targetType, targetID, time.Now())
	return err
}
