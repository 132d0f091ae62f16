package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"leadrelay/internal/pkg/errors"
	"leadrelay/internal/pkg/validator"
	"leadrelay/internal/platform/models"
	"leadrelay/internal/platform/nango"
)

type SessionCreator interface {
	CreateConnectSession(ctx context.Context, req models.SessionRequest) (*nango.SessionResponse, error)
}

type IntegrationLister interface {
	ListIntegrations(ctx context.Context) ([]models.Integration, error)
}

type SessionHandler struct {
	proxy SessionCreator
}

func NewSessionHandler(proxy SessionCreator) *SessionHandler {
	return &SessionHandler{proxy: proxy}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID    string `json:"clientId"`
		ToolKey     string `json:"toolKey"`
		ClientName  string `json:"clientName"`
		MemberEmail string `json:"memberEmail"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxWebhookBody)).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if missing := validator.MissingFields(map[string]string{"clientId": req.ClientID, "toolKey": req.ToolKey}); len(missing) > 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Missing clientId or toolKey", map[string][]string{"missing": missing})
		return
	}
	if req.MemberEmail != "" {
		if err := validator.ValidateEmail(req.MemberEmail); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid memberEmail", nil)
			return
		}
	}

	resp, err := h.proxy.CreateConnectSession(context.WithoutCancel(r.Context()), models.SessionRequest{
		ClientID:    strings.TrimSpace(req.ClientID),
		ToolKey:     strings.TrimSpace(req.ToolKey),
		ClientName:  strings.TrimSpace(req.ClientName),
		MemberEmail: strings.TrimSpace(req.MemberEmail),
	})
	if err != nil {
		log.Error().Err(err).Str("client_id", req.ClientID).Msg("Failed to create connect session")
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

type ToolsHandler struct {
	proxy IntegrationLister
}

func NewToolsHandler(proxy IntegrationLister) *ToolsHandler {
	return &ToolsHandler{proxy: proxy}
}

func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.proxy.ListIntegrations(context.WithoutCancel(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch tools")
		writeFailure(w, err)
		return
	}

	tools := lo.Map(integrations, func(i models.Integration, _ int) models.Tool { return i.Tool() })
	errors.WriteJSON(w, http.StatusOK, tools)
}
