package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"leadrelay/internal/engine/relay"
	"leadrelay/internal/engine/webhooks"
	"leadrelay/internal/pkg/errors"
	"leadrelay/internal/pkg/httpx"
	"leadrelay/internal/platform/models"
)

// MaxWebhookBody bounds inbound webhook payloads: 1 MiB.
const MaxWebhookBody = 1 << 20

const SignatureHeader = "X-Nango-Hmac-Sha256"

type successResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type syncSummary struct {
	Stored    int `json:"stored"`
	Forwarded int `json:"forwarded"`
	Failed    int `json:"failed"`
}

type WebhookHandler struct {
	relay  *relay.Service
	secret string
}

// NewWebhookHandler builds the receiver. A non-empty secret turns on
// signature verification of every inbound body.
func NewWebhookHandler(svc *relay.Service, secret string) *WebhookHandler {
	return &WebhookHandler{relay: svc, secret: secret}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput, "Request body too large", nil)
			return
		}
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if h.secret != "" && !webhooks.Verify(h.secret, body, r.Header.Get(SignatureHeader)) {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid webhook signature", nil)
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	// Remote calls run to completion even if the caller hangs up.
	ctx := context.WithoutCancel(r.Context())
	route := h.relay.Classify(&event)
	logger := log.With().
		Str("route", route.String()).
		Str("type", event.Type).
		Str("connection_id", event.ConnectionID).
		Logger()

	switch route {
	case relay.RouteLog:
		ev := logger.Info()
		if len(event.Data) > 0 && json.Valid(event.Data) {
			ev = ev.RawJSON("data", event.Data)
		}
		ev.Msg("Provider webhook received")
		errors.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "Lead data logged"})

	case relay.RouteSync:
		ev := logger.Info().Str("model", event.Model).Str("sync", event.SyncName)
		if rr := event.ResponseResults; rr != nil {
			ev = ev.Int("added", rr.Added).Int("updated", rr.Updated).Int("deleted", rr.Deleted)
		}
		ev.Msg("Sync event received")
		if event.Added() <= 0 {
			errors.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "No new contacts added"})
			return
		}

		res, err := h.relay.Ingest(ctx, &event)
		if err != nil {
			logger.Error().Err(err).Msg("Sync ingestion failed")
			writeFailure(w, err)
			return
		}
		if res.Fetched == 0 {
			errors.WriteJSON(w, http.StatusOK, successResponse{Success: true, Message: "No new contacts added"})
			return
		}
		errors.WriteJSON(w, http.StatusOK, successResponse{
			Success: true,
			Message: fmt.Sprintf("Stored & forwarded %d new leads", res.Stored),
			Data:    syncSummary{Stored: res.Stored, Forwarded: res.Forwarded, Failed: res.Failed},
		})

	case relay.RouteAuth:
		rec, err := h.relay.RecordConnection(ctx, &event)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to record connection")
			writeFailure(w, err)
			return
		}
		errors.WriteJSON(w, http.StatusOK, successResponse{Success: true, Data: rec})

	default:
		logger.Warn().Str("from", event.From).Bool("success", event.Success).Msg("Rejected webhook")
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidEvent, "Invalid webhook type or source", nil)
	}
}

// writeFailure reports a pipeline error as a 500 carrying its message.
func writeFailure(w http.ResponseWriter, err error) {
	code := errors.ErrCodeInternal
	if _, ok := httpx.AsAPIError(err); ok {
		code = errors.ErrCodeUpstream
	}
	errors.WriteError(w, http.StatusInternalServerError, code, err.Error(), nil)
}
