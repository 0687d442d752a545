package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/jcbodero/sitema-correos-masivos/internal/errors"
	"github.com/jcbodero/sitema-correos-masivos/internal/model"
	"github.com/jcbodero/sitema-correos-masivos/internal/service"
)

type EmailController struct {
	EmailService *service.EmailService
}

type sendEmailRequest struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
	TextContent string `json:"text_content"`
	FromEmail   string `json:"from_email"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

func (r *sendEmailRequest) message() *model.EmailMessage {
	return &model.EmailMessage{
		To:          r.To,
		Subject:     r.Subject,
		HTMLContent: r.HTMLContent,
		TextContent: r.TextContent,
		From:        r.FromEmail,
		FromName:    r.FromName,
		ReplyTo:     r.ReplyTo,
		TrackOpens:  true,
		TrackClicks: true,
	}
}

// SendEmail sends one ad-hoc email synchronously, outside any campaign.
func (c *EmailController) SendEmail(w http.ResponseWriter, r *http.Request) {
	var body sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.To == "" || body.Subject == "" {
		http.Error(w, "to and subject are required", http.StatusBadRequest)
		return
	}

	log, err := c.EmailService.Send(r.Context(), body.message())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if log.Status == model.StatusFailed {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(log)
}

type bulkRecipient struct {
	RecipientID     int64             `json:"recipient_id"`
	Email           string            `json:"email"`
	Personalization map[string]string `json:"personalization"`
}

type bulkEmailResult struct {
	Email   string `json:"email"`
	LogID   int64  `json:"log_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SendBulk sends one shared subject/body to many recipients, merging global
// and per-recipient personalization data before each send.
func (c *EmailController) SendBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID            *int64            `json:"campaign_id"`
		Subject               string            `json:"subject"`
		HTMLContent           string            `json:"html_content"`
		TextContent           string            `json:"text_content"`
		FromEmail             string            `json:"from_email"`
		FromName              string            `json:"from_name"`
		GlobalPersonalization map[string]string `json:"global_personalization"`
		Recipients            []bulkRecipient   `json:"recipients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Subject == "" || len(body.Recipients) == 0 {
		http.Error(w, "subject and recipients are required", http.StatusBadRequest)
		return
	}

	msgs := make([]*model.EmailMessage, 0, len(body.Recipients))
	for _, recipient := range body.Recipients {
		data := make(map[string]string, len(body.GlobalPersonalization)+len(recipient.Personalization))
		for k, v := range body.GlobalPersonalization {
			data[k] = v
		}
		for k, v := range recipient.Personalization {
			data[k] = v
		}
		msgs = append(msgs, &model.EmailMessage{
			To:                  recipient.Email,
			Subject:             service.Personalize(body.Subject, data),
			HTMLContent:         service.Personalize(body.HTMLContent, data),
			TextContent:         service.Personalize(body.TextContent, data),
			From:                body.FromEmail,
			FromName:            body.FromName,
			PersonalizationData: data,
			CampaignID:          body.CampaignID,
			RecipientID:         recipient.RecipientID,
			TrackOpens:          true,
			TrackClicks:         true,
		})
	}

	logs, err := c.EmailService.SendBatch(r.Context(), msgs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	results := make([]bulkEmailResult, 0, len(logs))
	sent := 0
	for _, log := range logs {
		ok := log.Status == model.StatusSent
		if ok {
			sent++
		}
		results = append(results, bulkEmailResult{
			Email:   log.RecipientEmail,
			LogID:   log.ID,
			Success: ok,
			Error:   log.ErrorMessage,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total":   len(logs),
		"sent":    sent,
		"failed":  len(logs) - sent,
		"results": results,
	})
}

func (c *EmailController) GetEmail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid email id", http.StatusBadRequest)
		return
	}

	log, err := c.EmailService.GetEmailLog(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(log)
}

// HandleEvent ingests provider webhook callbacks (delivered, opened,
// clicked, bounced) keyed by the provider-assigned external id.
func (c *EmailController) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExternalID string `json:"external_id"`
		Event      string `json:"event"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.ExternalID == "" || body.Event == "" {
		http.Error(w, "external_id and event are required", http.StatusBadRequest)
		return
	}

	if err := c.EmailService.HandleEvent(r.Context(), body.ExternalID, body.Event, body.Reason); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RetryFailed re-attempts every failed email of a campaign that still has
// retry budget.
func (c *EmailController) RetryFailed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	retried, err := c.EmailService.RetryFailedEmails(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"retried": retried})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var campaignMissing *appErrors.ErrCampaignNotFound
	var logMissing *appErrors.ErrEmailLogNotFound
	var invalid *appErrors.ErrInvalidTransition
	switch {
	case errors.As(err, &campaignMissing), errors.As(err, &logMissing),
		errors.Is(err, appErrors.ErrTemplateNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
