package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadrelay/internal/platform/models"
	"leadrelay/internal/platform/nango"
)

type stubProxy struct {
	got          models.SessionRequest
	calls        int
	resp         *nango.SessionResponse
	integrations []models.Integration
	err          error
}

func (p *stubProxy) CreateConnectSession(ctx context.Context, req models.SessionRequest) (*nango.SessionResponse, error) {
	p.calls++
	p.got = req
	return p.resp, p.err
}

func (p *stubProxy) ListIntegrations(ctx context.Context) ([]models.Integration, error) {
	return p.integrations, p.err
}

func TestSessionHandler_ProxiesResponse(t *testing.T) {
	proxy := &stubProxy{resp: &nango.SessionResponse{StatusCode: http.StatusCreated, Body: json.RawMessage(`{"data":{"token":"tok"}}`)}}
	h := NewSessionHandler(proxy)

	req := httptest.NewRequest(http.MethodPost, "/create-session", strings.NewReader(`{"clientId":"c1","toolKey":"hubspot","clientName":"Acme","memberEmail":"m@acme.io"}`))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected proxied 201, got %d", rr.Code)
	}
	if rr.Body.String() != `{"data":{"token":"tok"}}` {
		t.Errorf("Expected verbatim body, got %s", rr.Body.String())
	}
	if proxy.got.ClientName != "Acme" || proxy.got.MemberEmail != "m@acme.io" {
		t.Errorf("Unexpected session request %+v", proxy.got)
	}
}

func TestSessionHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Missing toolKey", `{"clientId":"c1"}`},
		{"Blank clientId", `{"clientId":"  ","toolKey":"hubspot"}`},
		{"Malformed email", `{"clientId":"c1","toolKey":"hubspot","memberEmail":"not-an-email"}`},
		{"Malformed JSON", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := &stubProxy{}
			h := NewSessionHandler(proxy)
			rr := httptest.NewRecorder()
			h.Create(rr, httptest.NewRequest(http.MethodPost, "/create-session", strings.NewReader(tt.body)))

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rr.Code)
			}
			if proxy.calls != 0 {
				t.Error("Expected no proxy call")
			}
		})
	}
}

func TestSessionHandler_TransportError(t *testing.T) {
	h := NewSessionHandler(&stubProxy{err: errors.New("dial tcp: timeout")})
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/create-session", strings.NewReader(`{"clientId":"c1","toolKey":"t"}`)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}
}

func TestToolsHandler(t *testing.T) {
	h := NewToolsHandler(&stubProxy{integrations: []models.Integration{
		{UniqueKey: "hubspot", Provider: "hubspot", DisplayName: "HubSpot", Logo: "h.svg"},
		{UniqueKey: "sf", Provider: "salesforce"},
	}})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var tools []models.Tool
	if err := json.Unmarshal(rr.Body.Bytes(), &tools); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tools) != 2 || tools[0].Name != "HubSpot" || tools[1].Name != "salesforce" {
		t.Errorf("Unexpected tools %+v", tools)
	}
}

func TestToolsHandler_Error(t *testing.T) {
	h := NewToolsHandler(&stubProxy{err: errors.New("unauthorized")})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"store":     func(context.Context) error { return nil },
		"forwarder": func(context.Context) error { return errors.New("url not set") },
	})
	rr := httptest.NewRecorder()
	h.Check(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", rr.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Status != "degraded" || body.Checks["store"] != "healthy" {
		t.Errorf("Unexpected body %+v", body)
	}
}
