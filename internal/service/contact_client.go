package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jcbodero/sitema-correos-masivos/internal/model"
)

// ContactDirectory expands a target-list entry into concrete recipients.
type ContactDirectory interface {
	ResolveTargets(ctx context.Context, targetType model.TargetType, targetID int64) ([]*model.Recipient, error)
}

// ContactClient resolves recipients through the contact service. LIST and
// SEGMENT responses are paged; pages are walked until exhausted.
type ContactClient struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
}

func NewContactClient(baseURL, token string, timeout time.Duration) *ContactClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ContactClient{
		baseURL:  baseURL,
		token:    token,
		pageSize: 100,
		client:   &http.Client{Timeout: timeout},
	}
}

type contactPage struct {
	Content    []*model.Recipient `json:"content"`
	TotalPages int                `json:"totalPages"`
}

func (c *ContactClient) ResolveTargets(ctx context.Context, targetType model.TargetType, targetID int64) ([]*model.Recipient, error) {
	if targetType == model.TargetContact {
		recipient, err := c.getContact(ctx, targetID)
		if err != nil {
			return nil, err
		}
		return []*model.Recipient{recipient}, nil
	}

	var path string
	switch targetType {
	case model.TargetList:
		path = fmt.Sprintf("%s/contacts/list/%d/contacts", c.baseURL, targetID)
	case model.TargetSegment:
		path = fmt.Sprintf("%s/contacts/segment/%d/contacts", c.baseURL, targetID)
	default:
		return nil, fmt.Errorf("unknown target type %q", targetType)
	}

	var recipients []*model.Recipient
	for page := 0; ; page++ {
		url := fmt.Sprintf("%s?page=%d&size=%d", path, page, c.pageSize)
		var result contactPage
		if err := c.getJSON(ctx, url, &result); err != nil {
			return nil, err
		}
		recipients = append(recipients, result.Content...)
		if page >= result.TotalPages-1 || len(result.Content) == 0 {
			break
		}
	}
	return recipients, nil
}

func (c *ContactClient) getContact(ctx context.Context, id int64) (*model.Recipient, error) {
	var recipient model.Recipient
	url := fmt.Sprintf("%s/contacts/%d", c.baseURL, id)
	if err := c.getJSON(ctx, url, &recipient); err != nil {
		return nil, err
	}
	return &recipient, nil
}

func (c *ContactClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contact service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("contact service returned %d for %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
