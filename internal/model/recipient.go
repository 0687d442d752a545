package model

// Recipient is one concrete contact resolved from a target-list entry.
type Recipient struct {
	ID      int64  `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
}

// PersonalizationData exposes the recipient fields used for placeholder
// substitution. Empty fields are omitted so missing placeholders stay
// visible in the rendered content.
func (r *Recipient) PersonalizationData() map[string]string {
	data := map[string]string{
		"email": r.Email,
	}
	if r.Name != "" {
		data["name"] = r.Name
	}
	if r.Company != "" {
		data["company"] = r.Company
	}
	return data
}
