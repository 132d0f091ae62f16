package models

import (
	"fmt"
	"strings"
	"time"
)

// MaxBatchSize is the number of records the store accepts per write.
const MaxBatchSize = 10

// Fields is the column-name to value map of one store record.
type Fields map[string]interface{}

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(name string) string {
	if f == nil {
		return ""
	}
	switch v := f[name].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Record is one row of a store table.
type Record struct {
	ID          string `json:"id"`
	CreatedTime string `json:"createdTime,omitempty"`
	Fields      Fields `json:"fields"`
}

// SyncedRecord is a contact fetched from the integration proxy.
type SyncedRecord struct {
	ID                string   `json:"id"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	MobilePhoneNumber string   `json:"mobile_phone_number"`
	PhoneType         string   `json:"phone_type"`
	Company           string   `json:"company"`
	CompanyID         string   `json:"company_id"`
	Owner             string   `json:"owner"`
	LeadStatus        string   `json:"lead_status"`
	LeadType          string   `json:"lead_type"`
	CustomField1      string   `json:"custom_field_1"`
	CustomField2      string   `json:"custom_field_2"`
	CustomField3      string   `json:"custom_field_3"`
	CreatedDate       string   `json:"created_date"`
	FirstCallID       string   `json:"first_call_id"`
	FirstCallURL      string   `json:"first_call_url"`
	ReportCallID      string   `json:"report_call_id"`
	LastContacted     string   `json:"last_contacted"`
	UserIDs           []string `json:"user_ids"`
}

// CreatedDay returns the calendar day of CreatedDate as YYYY-MM-DD, or ""
// when the value is missing or not a recognizable timestamp.
func (r SyncedRecord) CreatedDay() string {
	v := strings.TrimSpace(r.CreatedDate)
	if v == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}

// DisplayName prefers the person's name, then email, then a fixed placeholder.
func (r SyncedRecord) DisplayName() string {
	if r.FirstName != "" || r.LastName != "" {
		return strings.TrimSpace(r.FirstName + " " + r.LastName)
	}
	if r.Email != "" {
		return r.Email
	}
	return "Unknown Lead"
}

// ContactPhone prefers the mobile number.
func (r SyncedRecord) ContactPhone() string {
	if r.MobilePhoneNumber != "" {
		return r.MobilePhoneNumber
	}
	return r.Phone
}

// RecordQuery selects the synced records one sync event announced.
type RecordQuery struct {
	Model             string
	ConnectionID      string
	ProviderConfigKey string
	// ModifiedAfter is the sync window start reported by the webhook.
	ModifiedAfter string
	Limit         int
}

// Integration is one entry of the proxy's integration catalog.
type Integration struct {
	UniqueKey   string `json:"unique_key"`
	Provider    string `json:"provider"`
	DisplayName string `json:"display_name"`
	Logo        string `json:"logo"`
}

// Tool is the reduced integration shape returned to the UI.
type Tool struct {
	Key      string `json:"key"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
	Logo     string `json:"logo"`
}

func (i Integration) Tool() Tool {
	name := i.DisplayName
	if name == "" {
		name = i.Provider
	}
	return Tool{
		Key:      i.UniqueKey,
		Provider: i.Provider,
		Name:     name,
		Logo:     i.Logo,
	}
}

// SessionRequest asks the proxy for a connect session on behalf of an end user.
type SessionRequest struct {
	ClientID    string
	ToolKey     string
	ClientName  string
	MemberEmail string
}
