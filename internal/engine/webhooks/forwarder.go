package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"

	"leadrelay/internal/pkg/httpx"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/models"
)

var ErrNotConfigured = errors.New("forwarder url is not configured")

// Delivery is the outcome of forwarding one lead.
type Delivery struct {
	ID         string
	LeadID     string
	RecordID   string
	StatusCode int
	Err        error
}

func (d Delivery) OK() bool { return d.Err == nil }

// Forwarder posts stored leads to the downstream automation webhook.
type Forwarder struct {
	url            string
	secret         string
	maxConcurrency int
	client         *http.Client
}

func NewForwarder(cfg config.ForwarderConfig, client *http.Client) *Forwarder {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Forwarder{
		url:            strings.TrimSpace(cfg.URL),
		secret:         cfg.Secret,
		maxConcurrency: cfg.MaxConcurrency,
		client:         client,
	}
}

func (f *Forwarder) Configured() bool {
	return f != nil && f.url != ""
}

// Forward delivers every notification concurrently and waits for all of them.
// A failed delivery is logged and reported in its Delivery; it never stops the
// others.
func (f *Forwarder) Forward(ctx context.Context, leads []models.LeadNotification) []Delivery {
	if len(leads) == 0 {
		return nil
	}

	p := pool.NewWithResults[Delivery]()
	if f.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(f.maxConcurrency)
	}

	for _, lead := range leads {
		p.Go(func() Delivery {
			d := f.deliver(ctx, lead)
			if d.Err != nil {
				log.Error().Err(d.Err).
					Str("lead_id", d.LeadID).
					Str("record_id", d.RecordID).
					Str("delivery_id", d.ID).
					Msg("Failed to forward lead")
			} else {
				log.Info().
					Str("lead_id", d.LeadID).
					Str("delivery_id", d.ID).
					Msg("Lead forwarded")
			}
			return d
		})
	}

	return p.Wait()
}

func (f *Forwarder) deliver(ctx context.Context, lead models.LeadNotification) Delivery {
	d := Delivery{
		ID:       uuid.NewString(),
		LeadID:   lead.LeadID,
		RecordID: lead.RecordID,
	}
	if !f.Configured() {
		d.Err = ErrNotConfigured
		return d
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		d.Err = err
		return d
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		d.Err = err
		return d
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Relay-Delivery", d.ID)
	if f.secret != "" {
		req.Header.Set("X-Relay-Signature", Sign(f.secret, payload))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		d.Err = fmt.Errorf("forward lead %s: %w", lead.LeadID, err)
		return d
	}
	defer resp.Body.Close()

	d.StatusCode = resp.StatusCode
	d.Err = httpx.CheckResponse(resp, "forwarder", "forward lead")
	return d
}

// Failed counts deliveries that did not succeed.
func Failed(deliveries []Delivery) int {
	return lo.CountBy(deliveries, func(d Delivery) bool { return !d.OK() })
}
