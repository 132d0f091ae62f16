package nango

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadrelay/internal/pkg/httpx"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/models"
)

const serviceName = "nango"

// ErrMissingIdentifiers is returned when a records fetch lacks the connection
// id or the provider config key.
var ErrMissingIdentifiers = errors.New("missing connectionId or providerConfigKey")

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg config.NangoConfig, httpClient *http.Client) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.nango.dev"
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		httpClient: httpClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.secretKey != ""
}

// ListRecords fetches the records a sync added for one connection, starting
// at q.ModifiedAfter when set. A non-positive limit leaves the page size to
// the proxy.
func (c *Client) ListRecords(ctx context.Context, q models.RecordQuery) ([]models.SyncedRecord, error) {
	connectionID := strings.TrimSpace(q.ConnectionID)
	providerConfigKey := strings.TrimSpace(q.ProviderConfigKey)
	if connectionID == "" || providerConfigKey == "" {
		return nil, ErrMissingIdentifiers
	}

	query := url.Values{}
	query.Set("model", q.Model)
	query.Set("filter", "added")
	if q.ModifiedAfter != "" {
		query.Set("modified_after", q.ModifiedAfter)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/records?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Connection-Id", connectionID)
	req.Header.Set("Provider-Config-Key", providerConfigKey)

	var out struct {
		Records []models.SyncedRecord `json:"records"`
	}
	if err := c.doJSON(req, "fetch records", &out); err != nil {
		return nil, err
	}
	if out.Records == nil {
		return []models.SyncedRecord{}, nil
	}
	return out.Records, nil
}

// ListIntegrations returns the integrations configured in the environment.
func (c *Client) ListIntegrations(ctx context.Context) ([]models.Integration, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/integrations", nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []models.Integration `json:"data"`
	}
	if err := c.doJSON(req, "list integrations", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// SessionResponse is the proxy's answer to a connect-session request, kept
// verbatim so it can be relayed to the caller.
type SessionResponse struct {
	StatusCode int
	Body       json.RawMessage
}

// CreateConnectSession opens a connect session restricted to one integration.
// Non-2xx answers are returned as a response, not an error.
func (c *Client) CreateConnectSession(ctx context.Context, sr models.SessionRequest) (*SessionResponse, error) {
	endUser := map[string]string{"id": sr.ClientID}
	if sr.MemberEmail != "" {
		endUser["email"] = sr.MemberEmail
	}
	if sr.ClientName != "" {
		endUser["display_name"] = sr.ClientName
	}
	payload := map[string]any{
		"end_user":             endUser,
		"allowed_integrations": []string{sr.ToolKey},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/connect/sessions", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nango create session: %w", err)
	}
	defer resp.Body.Close()

	body, err := httpx.ReadResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nango create session: %w", err)
	}
	if !json.Valid(body) {
		return nil, &httpx.APIError{Service: serviceName, Operation: "create session", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return &SessionResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if !c.Configured() {
		return nil, errors.New("nango: secret key is required")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(req *http.Request, operation string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nango %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckResponse(resp, serviceName, operation); err != nil {
		return err
	}
	return httpx.DecodeResponse(resp.Body, out)
}
