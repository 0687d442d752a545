package model

// EmailMessage is one outbound message handed to the delivery engine.
// It is built per recipient and consumed once; only its EmailLog persists.
type EmailMessage struct {
	To                  string            `json:"to"`
	Subject             string            `json:"subject"`
	HTMLContent         string            `json:"html_content"`
	TextContent         string            `json:"text_content,omitempty"`
	From                string            `json:"from"`
	FromName            string            `json:"from_name,omitempty"`
	ReplyTo             string            `json:"reply_to,omitempty"`
	PersonalizationData map[string]string `json:"personalization_data,omitempty"`
	CampaignID          *int64            `json:"campaign_id,omitempty"`
	RecipientID         int64             `json:"recipient_id"`
	TrackOpens          bool              `json:"track_opens"`
	TrackClicks         bool              `json:"track_clicks"`
}
