package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appErrors "github.com/jcbodero/sitema-correos-masivos/internal/errors"
)

// TemplateRenderer resolves a template id to its HTML content.
type TemplateRenderer interface {
	GetTemplateContent(ctx context.Context, templateID int64) (string, error)
}

// TemplateClient fetches templates from the template service over HTTP.
type TemplateClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewTemplateClient(baseURL, token string, timeout time.Duration) *TemplateClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TemplateClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *TemplateClient) GetTemplateContent(ctx context.Context, templateID int64) (string, error) {
	url := fmt.Sprintf("%s/templates/%d", c.baseURL, templateID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("template service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("template %d: %w", templateID, appErrors.ErrTemplateNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("template service returned %d", resp.StatusCode)
	}

	var body struct {
		HTMLContent string `json:"htmlContent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding template response: %w", err)
	}
	if body.HTMLContent == "" {
		return "", fmt.Errorf("template %d has no content: %w", templateID, appErrors.ErrTemplateNotFound)
	}
	return body.HTMLContent, nil
}
