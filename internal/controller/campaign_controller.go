package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/service"
)

// CampaignStatsProvider supplies per-status delivery counts for a campaign.
type CampaignStatsProvider interface {
	CampaignStats(ctx context.Context, campaignID int64) (map[string]int, error)
}

type CampaignController struct {
	CampaignService *service.CampaignService
	Stats           CampaignStatsProvider
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Subject     string `json:"subject"`
		Description string `json:"description"`
		TemplateID  int64  `json:"template_id"`
		UserID      int64  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Subject == "" || body.TemplateID == 0 {
		http.Error(w, "name, subject and template_id are required", http.StatusBadRequest)
		return
	}

	campaign := &model.Campaign{
		Name:        body.Name,
		Subject:     body.Subject,
		Description: body.Description,
		TemplateID:  body.TemplateID,
		UserID:      body.UserID,
	}
	if err := c.CampaignService.CreateCampaign(r.Context(), campaign); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	campaign, err := c.CampaignService.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"campaign": campaign}
	if c.Stats != nil {
		counts, err := c.Stats.CampaignStats(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		resp["stats"] = counts
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (c *CampaignController) AddTarget(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		TargetType string `json:"target_type"`
		TargetID   int64  `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	targetType := model.TargetType(body.TargetType)
	switch targetType {
	case model.TargetList, model.TargetSegment, model.TargetContact:
	default:
		http.Error(w, "target_type must be LIST, SEGMENT or CONTACT", http.StatusBadRequest)
		return
	}
	if body.TargetID == 0 {
		http.Error(w, "target_id is required", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.AddTargetList(r.Context(), id, targetType, body.TargetID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	c.control(w, r, c.CampaignService.StartCampaign)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.control(w, r, c.CampaignService.PauseCampaign)
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c.control(w, r, c.CampaignService.ResumeCampaign)
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	c.control(w, r, c.CampaignService.CancelCampaign)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledAt)
	if err != nil {
		http.Error(w, "scheduled_at must be RFC3339", http.StatusBadRequest)
		return
	}
	if !at.After(time.Now()) {
		http.Error(w, "scheduled_at must be in the future", http.StatusBadRequest)
		return
	}

	if err := c.CampaignService.ScheduleCampaign(r.Context(), id, at); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// control runs one lifecycle action identified by the URL campaign id.
func (c *CampaignController) control(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id int64) error) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := action(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
