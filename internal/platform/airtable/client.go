package airtable

import (
	"bytes"
	"context"
	"encoding/json"
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

const serviceName = "airtable"

// Client talks to one base of the tabular store's REST API.
type Client struct {
	baseURL    string
	baseID     string
	token      string
	httpClient *http.Client
}

// NewClient builds a client for cfg. A nil httpClient gets a default client
// with cfg.Timeout (20s when unset).
func NewClient(cfg config.StoreConfig, httpClient *http.Client) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
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
		baseID:     strings.TrimSpace(cfg.BaseID),
		token:      strings.TrimSpace(cfg.APIToken),
		httpClient: httpClient,
	}
}

// Configured reports whether the client has a base and a token.
func (c *Client) Configured() bool {
	return c != nil && c.baseID != "" && c.token != ""
}

type ListOptions struct {
	Formula    string
	MaxRecords int
}

type listResponse struct {
	Records []models.Record `json:"records"`
	Offset  string          `json:"offset,omitempty"`
}

// List returns the first page of records in table matching opts.Formula.
func (c *Client) List(ctx context.Context, table string, opts ListOptions) ([]models.Record, error) {
	query := url.Values{}
	if opts.Formula != "" {
		query.Set("filterByFormula", opts.Formula)
	}
	if opts.MaxRecords > 0 {
		query.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, table, query, nil, "list records", &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// FindByField returns the records of table whose field equals value.
func (c *Client) FindByField(ctx context.Context, table, field, value string) ([]models.Record, error) {
	return c.List(ctx, table, ListOptions{Formula: EqualsFormula(field, value)})
}

// CreateRecords inserts up to models.MaxBatchSize records in one write. The
// returned records are in request order.
func (c *Client) CreateRecords(ctx context.Context, table string, fields []models.Fields) ([]models.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > models.MaxBatchSize {
		return nil, fmt.Errorf("airtable: %d records exceed the batch limit of %d", len(fields), models.MaxBatchSize)
	}

	type createRecord struct {
		Fields models.Fields `json:"fields"`
	}
	body := struct {
		Records  []createRecord `json:"records"`
		Typecast bool           `json:"typecast"`
	}{Typecast: true}
	for _, f := range fields {
		body.Records = append(body.Records, createRecord{Fields: f})
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodPost, table, nil, body, "create records", &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// CreateRecord inserts a single record.
func (c *Client) CreateRecord(ctx context.Context, table string, fields models.Fields) (models.Record, error) {
	body := struct {
		Fields   models.Fields `json:"fields"`
		Typecast bool          `json:"typecast"`
	}{Fields: fields, Typecast: true}

	var rec models.Record
	if err := c.do(ctx, http.MethodPost, table, nil, body, "create record", &rec); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, table string, query url.Values, payload any, operation string, out any) error {
	if !c.Configured() {
		return fmt.Errorf("airtable: base id and api token are required")
	}

	endpoint := fmt.Sprintf("%s/v0/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("airtable: encode %s: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckResponse(resp, serviceName, operation); err != nil {
		return err
	}
	return httpx.DecodeResponse(resp.Body, out)
}

// EqualsFormula builds a filterByFormula expression matching field == value.
func EqualsFormula(field, value string) string {
	return fmt.Sprintf("{%s}=%s", field, quote(value))
}

func quote(value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	return `"` + escaped + `"`
}
