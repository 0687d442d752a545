package appErrors

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound marks an unknown template id. Retrying a batch that
// hits it will not change the outcome.
var ErrTemplateNotFound = errors.New("template not found")

// ErrCampaignNotFound is returned when a campaign id resolves to nothing.
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrEmailLogNotFound is returned when a delivery log lookup misses.
type ErrEmailLogNotFound struct {
	ID         int64
	ExternalID string
}

func (e *ErrEmailLogNotFound) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("email log with external ID %q not found", e.ExternalID)
	}
	return fmt.Sprintf("email log with ID %d not found", e.ID)
}

// ErrInvalidTransition is returned when a campaign control signal is not
// legal in the campaign's current state.
type ErrInvalidTransition struct {
	CampaignID int64
	Action     string
	Status     string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d cannot %s in status %s", e.CampaignID, e.Action, e.Status)
}
