package repository

import (
	"database/sql"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// EmailLogRepositoryInterface is what the delivery engine and webhook
// handlers need from persistence.
type EmailLogRepositoryInterface interface {
	Create(log *model.EmailLog) error
	Update(log *model.EmailLog) error
	GetByID(id int64) (*model.EmailLog, error)
	GetByExternalID(externalID string) (*model.EmailLog, error)
	FindFailedForRetry(campaignID int64) ([]*model.EmailLog, error)
	CountByCampaignAndStatus(campaignID int64) (map[string]int, error)
}

type EmailLogRepository struct {
	DB *sql.DB
}

const emailLogColumns = `id, campaign_id, recipient_id, recipient_email, subject, from_email, from_name,
 status, provider, external_id, sent_at, delivered_at, opened_at, clicked_at, bounced_at,
 error_message, retry_count, max_retries, created_at, updated_at`

func (r *EmailLogRepository) Create(log *model.EmailLog) error {
	query := `
        INSERT INTO email_logs
        (campaign_id, recipient_id, recipient_email, subject, from_email, from_name,
         status, provider, external_id, error_message, retry_count, max_retries, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		log.CampaignID,
		log.RecipientID,
		log.RecipientEmail,
		log.Subject,
		log.FromEmail,
		log.FromName,
		log.Status,
		log.Provider,
		log.ExternalID,
		log.ErrorMessage,
		log.RetryCount,
		log.MaxRetries,
		log.CreatedAt,
		log.UpdatedAt,
	).Scan(&log.ID)
}

func (r *EmailLogRepository) Update(log *model.EmailLog) error {
	query := `
        UPDATE email_logs
        SET status=$1, provider=$2, external_id=$3, sent_at=$4, delivered_at=$5,
            opened_at=$6, clicked_at=$7, bounced_at=$8, error_message=$9,
            retry_count=$10, updated_at=$11
        WHERE id=$12
    `
	_, err := r.DB.Exec(query,
		log.Status,
		log.Provider,
		log.ExternalID,
		log.SentAt,
		log.DeliveredAt,
		log.OpenedAt,
		log.ClickedAt,
		log.BouncedAt,
		log.ErrorMessage,
		log.RetryCount,
		log.UpdatedAt,
		log.ID,
	)
	return err
}

func (r *EmailLogRepository) GetByID(id int64) (*model.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE id=$1`
	return r.scanOne(r.DB.QueryRow(query, id))
}

// GetByExternalID correlates asynchronous provider events with the log that
// issued the send.
func (r *EmailLogRepository) GetByExternalID(externalID string) (*model.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs WHERE external_id=$1 ORDER BY id DESC LIMIT 1`
	return r.scanOne(r.DB.QueryRow(query, externalID))
}

// FindFailedForRetry returns a campaign's FAILED logs that still have retry
// budget left.
func (r *EmailLogRepository) FindFailedForRetry(campaignID int64) ([]*model.EmailLog, error) {
	query := `
        SELECT ` + emailLogColumns + `
        FROM email_logs
        WHERE campaign_id=$1 AND status=$2 AND retry_count < max_retries
        ORDER BY id
    `
	rows, err := r.DB.Query(query, campaignID, model.StatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*model.EmailLog
	for rows.Next() {
		log, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (r *EmailLogRepository) CountByCampaignAndStatus(campaignID int64) (map[string]int, error) {
	query := `
        SELECT status, COUNT(*)
        FROM email_logs
        WHERE campaign_id = $1
        GROUP BY status
    `
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *EmailLogRepository) scanOne(row *sql.Row) (*model.EmailLog, error) {
	log, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (r *EmailLogRepository) scanRow(row rowScanner) (*model.EmailLog, error) {
	var log model.EmailLog
	var provider, externalID, errorMessage, fromName sql.NullString
	err := row.Scan(
		&log.ID,
		&log.CampaignID,
		&log.RecipientID,
		&log.RecipientEmail,
		&log.Subject,
		&log.FromEmail,
		&fromName,
		&log.Status,
		&provider,
		&externalID,
		&log.SentAt,
		&log.DeliveredAt,
		&log.OpenedAt,
		&log.ClickedAt,
		&log.BouncedAt,
		&errorMessage,
		&log.RetryCount,
		&log.MaxRetries,
		&log.CreatedAt,
		&log.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	log.FromName = fromName.String
	log.Provider = provider.String
	log.ExternalID = externalID.String
	log.ErrorMessage = errorMessage.String
	return &log, nil
}
