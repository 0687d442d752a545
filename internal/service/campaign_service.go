package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appErrors "github.com/jcbodero/sitema-correos-masivos/internal/errors"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/queue"
	"github.com/jcbodero/sitema-correos-masivos/internal/repository"
)

// CampaignService owns the campaign lifecycle and turns PROCESS_BATCH
// jobs into per-recipient email jobs.
type CampaignService struct {
	Campaigns repository.CampaignRepositoryInterface
	Contacts  ContactDirectory
	Templates TemplateRenderer
	Queue     queue.Publisher
	FromEmail string
	FromName  string
	Logger    *slog.Logger
}

func NewCampaignService(campaigns repository.CampaignRepositoryInterface, contacts ContactDirectory, templates TemplateRenderer, q queue.Publisher, fromEmail, fromName string, logger *slog.Logger) *CampaignService {
	return &CampaignService{
		Campaigns: campaigns,
		Contacts:  contacts,
		Templates: templates,
		Queue:     q,
		FromEmail: fromEmail,
		FromName:  fromName,
		Logger:    logger,
	}
}

func (s *CampaignService) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	if campaign.Status == "" {
		campaign.Status = model.CampaignDraft
	}
	if err := s.Campaigns.Create(campaign); err != nil {
		return fmt.Errorf("creating campaign: %w", err)
	}
	s.Logger.Info("campaign created",
		slog.Int64("campaign_id", campaign.ID), slog.String("name", campaign.Name))
	return nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	campaign, err := s.Campaigns.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("loading campaign: %w", err)
	}
	if campaign == nil {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return campaign, nil
}

func (s *CampaignService) AddTargetList(ctx context.Context, campaignID int64, targetType model.TargetType, targetID int64) error {
	if _, err := s.GetCampaign(ctx, campaignID); err != nil {
		return err
	}
	if err := s.Campaigns.AddTargetList(campaignID, targetType, targetID); err != nil {
		return fmt.Errorf("adding target list: %w", err)
	}
	return nil
}

// StartCampaign moves the campaign to SENDING and enqueues a batch job.
// The heavy lifting happens in the worker via ProcessBatch.
func (s *CampaignService) StartCampaign(ctx context.Context, id int64) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !campaign.CanStart() {
		return &appErrors.ErrInvalidTransition{CampaignID: id, Action: "start", Status: string(campaign.Status)}
	}
	if err := s.Campaigns.UpdateStatus(id, model.CampaignSending); err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}

	job := model.NewCampaignJob(id, campaign.UserID, model.JobProcessBatch)
	job.CampaignName = campaign.Name
	if err := s.Queue.Publish(queue.CampaignQueue, job); err != nil {
		return fmt.Errorf("enqueueing campaign job: %w", err)
	}

	s.Logger.Info("campaign started", slog.Int64("campaign_id", id))
	return nil
}

// ScheduleCampaign parks the campaign as SCHEDULED and arranges a delayed
// START_CAMPAIGN job for the requested time.
func (s *CampaignService) ScheduleCampaign(ctx context.Context, id int64, at time.Time) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !campaign.CanStart() {
		return &appErrors.ErrInvalidTransition{CampaignID: id, Action: "schedule", Status: string(campaign.Status)}
	}
	if err := s.Campaigns.UpdateStatus(id, model.CampaignScheduled); err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}

	job := model.NewCampaignJob(id, campaign.UserID, model.JobStartCampaign)
	job.CampaignName = campaign.Name
	if err := queue.ScheduleCampaignJob(s.Queue, job, at); err != nil {
		return fmt.Errorf("scheduling campaign job: %w", err)
	}

	s.Logger.Info("campaign scheduled",
		slog.Int64("campaign_id", id), slog.Time("scheduled_at", at))
	return nil
}

func (s *CampaignService) PauseCampaign(ctx context.Context, id int64) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !campaign.CanPause() {
		return &appErrors.ErrInvalidTransition{CampaignID: id, Action: "pause", Status: string(campaign.Status)}
	}
	if err := s.Campaigns.UpdateStatus(id, model.CampaignPaused); err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}
	s.Logger.Info("campaign paused", slog.Int64("campaign_id", id))
	return nil
}

func (s *CampaignService) ResumeCampaign(ctx context.Context, id int64) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if campaign.Status != model.CampaignPaused {
		return &appErrors.ErrInvalidTransition{CampaignID: id, Action: "resume", Status: string(campaign.Status)}
	}
	if err := s.Campaigns.UpdateStatus(id, model.CampaignSending); err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}

	job := model.NewCampaignJob(id, campaign.UserID, model.JobProcessBatch)
	job.CampaignName = campaign.Name
	if err := s.Queue.Publish(queue.CampaignQueue, job); err != nil {
		return fmt.Errorf("enqueueing campaign job: %w", err)
	}

	s.Logger.Info("campaign resumed", slog.Int64("campaign_id", id))
	return nil
}

func (s *CampaignService) CancelCampaign(ctx context.Context, id int64) error {
	campaign, err := s.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !campaign.CanCancel() {
		return &appErrors.ErrInvalidTransition{CampaignID: id, Action: "cancel", Status: string(campaign.Status)}
	}
	if err := s.Campaigns.UpdateStatus(id, model.CampaignCancelled); err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}
	s.Logger.Info("campaign cancelled", slog.Int64("campaign_id", id))
	return nil
}

// HandleJob dispatches one campaign queue job. A returned error means the
// job should be dead-lettered.
func (s *CampaignService) HandleJob(ctx context.Context, job *model.CampaignJob) error {
	s.Logger.Info("campaign job received",
		slog.Int64("campaign_id", job.CampaignID), slog.String("job_type", string(job.JobType)))

	switch job.JobType {
	case model.JobStartCampaign:
		err := s.StartCampaign(ctx, job.CampaignID)
		var invalid *appErrors.ErrInvalidTransition
		if err != nil && errors.As(err, &invalid) {
			// The campaign was paused or cancelled while the delayed
			// start was in flight. Drop the job.
			s.Logger.Warn("delayed start skipped", slog.Any("error", err))
			return nil
		}
		return err
	case model.JobProcessBatch:
		return s.ProcessBatch(ctx, job)
	case model.JobPauseCampaign:
		return s.PauseCampaign(ctx, job.CampaignID)
	case model.JobResumeCampaign:
		return s.ResumeCampaign(ctx, job.CampaignID)
	case model.JobCancelCampaign:
		return s.CancelCampaign(ctx, job.CampaignID)
	default:
		s.Logger.Error("unknown campaign job type", slog.String("job_type", string(job.JobType)))
		return nil
	}
}

// ProcessBatch expands a campaign into one email job per recipient. The
// campaign is marked complete once every job is enqueued; a template or
// publish failure aborts without completing so the job can dead-letter.
func (s *CampaignService) ProcessBatch(ctx context.Context, job *model.CampaignJob) error {
	campaign, err := s.Campaigns.GetByID(job.CampaignID)
	if err != nil {
		return fmt.Errorf("loading campaign: %w", err)
	}
	if campaign == nil {
		s.Logger.Warn("batch job for missing campaign, dropping",
			slog.Int64("campaign_id", job.CampaignID))
		return nil
	}
	if campaign.Status != model.CampaignSending {
		s.Logger.Info("campaign no longer sending, dropping batch",
			slog.Int64("campaign_id", campaign.ID), slog.String("status", string(campaign.Status)))
		return nil
	}

	targets, err := s.Campaigns.GetTargetLists(campaign.ID)
	if err != nil {
		return fmt.Errorf("loading target lists: %w", err)
	}
	if len(targets) == 0 {
		s.Logger.Warn("campaign has no targets, completing",
			slog.Int64("campaign_id", campaign.ID))
		return s.complete(campaign.ID)
	}

	htmlContent, err := s.Templates.GetTemplateContent(ctx, campaign.TemplateID)
	if err != nil {
		return fmt.Errorf("fetching template %d: %w", campaign.TemplateID, err)
	}

	enqueued := 0
	for _, target := range targets {
		recipients, err := s.Contacts.ResolveTargets(ctx, target.TargetType, target.TargetID)
		if err != nil {
			// One unresolvable list should not sink the whole campaign.
			s.Logger.Error("failed to resolve target",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("target_type", string(target.TargetType)),
				slog.Int64("target_id", target.TargetID),
				slog.Any("error", err))
			continue
		}
		for _, recipient := range recipients {
			data := recipient.PersonalizationData()
			emailJob := model.NewEmailJob(
				&campaign.ID,
				recipient.ID,
				recipient.Email,
				Personalize(campaign.Subject, data),
				Personalize(htmlContent, data),
				s.FromEmail,
			)
			emailJob.FromName = s.FromName
			emailJob.PersonalizationData = data
			if err := s.Queue.Publish(queue.EmailQueue, emailJob); err != nil {
				return fmt.Errorf("enqueueing email job: %w", err)
			}
			enqueued++
		}
	}

	s.Logger.Info("campaign batch processed",
		slog.Int64("campaign_id", campaign.ID), slog.Int("emails_enqueued", enqueued))

	if enqueued > 0 {
		return s.complete(campaign.ID)
	}
	return nil
}

func (s *CampaignService) complete(campaignID int64) error {
	if err := s.Campaigns.MarkComplete(campaignID); err != nil {
		return fmt.Errorf("completing campaign: %w", err)
	}
	s.Logger.Info("campaign completed", slog.Int64("campaign_id", campaignID))
	return nil
}
