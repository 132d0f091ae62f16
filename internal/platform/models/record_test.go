package models

import (
	"encoding/json"
	"testing"
)

func TestSyncedRecord_DisplayName(t *testing.T) {
	tests := []struct {
		name     string
		record   SyncedRecord
		expected string
	}{
		{name: "First and last", record: SyncedRecord{FirstName: "Ann", LastName: "Lee"}, expected: "Ann Lee"},
		{name: "First only", record: SyncedRecord{FirstName: "Ann", Email: "a@b.com"}, expected: "Ann"},
		{name: "Last only", record: SyncedRecord{LastName: "Lee"}, expected: "Lee"},
		{name: "Email fallback", record: SyncedRecord{Email: "a@b.com"}, expected: "a@b.com"},
		{name: "Nothing", record: SyncedRecord{}, expected: "Unknown Lead"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.DisplayName(); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestSyncedRecord_ContactPhone(t *testing.T) {
	r := SyncedRecord{Phone: "111", MobilePhoneNumber: "222"}
	if r.ContactPhone() != "222" {
		t.Errorf("Expected mobile number, got %s", r.ContactPhone())
	}
	r.MobilePhoneNumber = ""
	if r.ContactPhone() != "111" {
		t.Errorf("Expected phone, got %s", r.ContactPhone())
	}
}

func TestIntegration_ToolFallsBackToProvider(t *testing.T) {
	tool := Integration{UniqueKey: "hubspot-prod", Provider: "hubspot", Logo: "https://logo"}.Tool()
	if tool.Name != "hubspot" || tool.Key != "hubspot-prod" {
		t.Errorf("Unexpected tool %+v", tool)
	}
}

func TestEndUser_Identifier(t *testing.T) {
	var missing *EndUser
	if missing.Identifier() != "" {
		t.Error("Expected empty identifier for nil end user")
	}
	u := &EndUser{ID: "u-1"}
	if u.Identifier() != "u-1" {
		t.Errorf("Expected id fallback, got %s", u.Identifier())
	}
	u.EndUserID = "eu-1"
	if u.Identifier() != "eu-1" {
		t.Errorf("Expected endUserId, got %s", u.Identifier())
	}
}

func TestSyncedRecord_CreatedDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-04T22:15:00.000Z", "2025-03-04"},
		{"2025-03-04T23:30:00-05:00", "2025-03-05"},
		{"2025-03-04", "2025-03-04"},
		{"", ""},
		{"yesterday", ""},
	}
	for _, tt := range tests {
		if got := (SyncedRecord{CreatedDate: tt.in}).CreatedDay(); got != tt.want {
			t.Errorf("CreatedDay(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWebhookEvent_LenientIdentifiers(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		connection string
		configKey  string
	}{
		{"Strings", `{"connectionId":"conn-1","providerConfigKey":"hubspot"}`, "conn-1", "hubspot"},
		{"Number", `{"connectionId":12345,"providerConfigKey":"hubspot"}`, "12345", "hubspot"},
		{"Object and array", `{"connectionId":{"x":1},"providerConfigKey":["hubspot"]}`, "", ""},
		{"Null", `{"connectionId":null}`, "", ""},
		{"Absent", `{"type":"sync"}`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e WebhookEvent
			if err := json.Unmarshal([]byte(tt.body), &e); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if e.ConnectionID != tt.connection || e.ProviderConfigKey != tt.configKey {
				t.Errorf("got (%q, %q), want (%q, %q)", e.ConnectionID, e.ProviderConfigKey, tt.connection, tt.configKey)
			}
		})
	}
}

func TestWebhookEvent_DecodesSyncFields(t *testing.T) {
	var e WebhookEvent
	body := `{"from":"nango","type":"sync","model":"Contact","syncName":"contacts","modifiedAfter":"2025-03-04T10:00:00Z","responseResults":{"added":2,"updated":1}}`
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.From != "nango" || e.SyncName != "contacts" || e.ModifiedAfter != "2025-03-04T10:00:00Z" || e.Added() != 2 {
		t.Errorf("Unexpected event %+v", e)
	}
}
