package models

import (
	"encoding/json"
	"strings"
)

// Event types sent by the integration platform.
const (
	EventTypeWebhook = "webhook"
	EventTypeSync    = "sync"
	EventTypeAuth    = "auth"

	SourceNango = "nango"
)

// WebhookEvent is an inbound notification from the integration platform.
type WebhookEvent struct {
	From              string           `json:"from"`
	Type              string           `json:"type"`
	ConnectionID      string           `json:"connectionId"`
	ProviderConfigKey string           `json:"providerConfigKey"`
	Provider          string           `json:"provider"`
	Environment       string           `json:"environment"`
	Operation         string           `json:"operation"`
	Success           bool             `json:"success"`
	EndUser           *EndUser         `json:"endUser,omitempty"`
	Model             string           `json:"model"`
	SyncName          string           `json:"syncName,omitempty"`
	ModifiedAfter     string           `json:"modifiedAfter,omitempty"`
	ResponseResults   *ResponseResults `json:"responseResults,omitempty"`
	Data              json.RawMessage  `json:"data,omitempty"`
}

// UnmarshalJSON accepts any JSON value for the connection identifiers so a
// wrongly typed id reaches the pipeline's precondition check instead of
// failing the whole decode. Numbers and booleans keep their literal text;
// objects and arrays decode to "".
func (e *WebhookEvent) UnmarshalJSON(b []byte) error {
	type alias WebhookEvent
	aux := struct {
		*alias
		ConnectionID      json.RawMessage `json:"connectionId"`
		ProviderConfigKey json.RawMessage `json:"providerConfigKey"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.ConnectionID = scalarText(aux.ConnectionID)
	e.ProviderConfigKey = scalarText(aux.ProviderConfigKey)
	return nil
}

func scalarText(raw json.RawMessage) string {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return v
	}
}

type EndUser struct {
	EndUserID   string `json:"endUserId"`
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Identifier returns the end-user id under either of the names the platform uses.
func (u *EndUser) Identifier() string {
	if u == nil {
		return ""
	}
	if id := strings.TrimSpace(u.EndUserID); id != "" {
		return id
	}
	return strings.TrimSpace(u.ID)
}

type ResponseResults struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Added is the number of new records a sync event announces.
func (e *WebhookEvent) Added() int {
	if e.ResponseResults == nil {
		return 0
	}
	return e.ResponseResults.Added
}

// LeadNotification is the payload posted to the downstream automation for
// each stored lead. Field names are the downstream workflow's contract.
type LeadNotification struct {
	RecordID string `json:"Chaser ID"`
	Source   string `json:"Lead Source"`
	Name     string `json:"Lead Name"`
	Email    string `json:"Lead Email"`
	Phone    string `json:"Lead Phone"`
	LeadID   string `json:"Lead ID"`
}
