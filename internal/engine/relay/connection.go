package relay

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"leadrelay/internal/platform/models"
)

const (
	StatusConnected = "CONNECTED"
	StatusFailed    = "FAILED"
)

// RecordConnection stores one connection row for an auth event. The user
// lookup is best effort; the insert is not.
func (s *Service) RecordConnection(ctx context.Context, e *models.WebhookEvent) (models.Record, error) {
	t := s.tables.Connections
	clientID := e.EndUser.Identifier()

	status := StatusFailed
	if e.Success {
		status = StatusConnected
	}

	fields := models.Fields{}
	set(fields, t.ConnectionID, e.ConnectionID)
	set(fields, t.Provider, e.Provider)
	set(fields, t.ProviderConfigKey, e.ProviderConfigKey)
	set(fields, t.ClientID, clientID)
	set(fields, t.Status, status)
	set(fields, t.Environment, e.Environment)
	set(fields, t.Operation, e.Operation)
	set(fields, t.Created, s.today())

	if user := s.lookupUser(ctx, e.EndUser); user != nil {
		u := s.tables.Users
		setText(fields, t.UserName, user.Fields.String(u.Display))
		setText(fields, t.Chaser, user.Fields.String(u.Chaser))
		setText(fields, t.ChaserID, user.Fields.String(u.ChaserID))
		userID := user.Fields.String(u.UserID)
		if userID == "" {
			userID = clientID
		}
		setText(fields, t.UserID, userID)
		set(fields, t.User, []string{user.ID})
	}

	rec, err := s.store.CreateRecord(ctx, t.Name, fields)
	if err != nil {
		return models.Record{}, err
	}

	log.Info().
		Str("connection_id", e.ConnectionID).
		Str("provider_config_key", e.ProviderConfigKey).
		Str("record_id", rec.ID).
		Msg("Connection recorded")
	return rec, nil
}

// lookupUser resolves the end user by email, then by id. Failures are logged
// and yield nil.
func (s *Service) lookupUser(ctx context.Context, u *models.EndUser) *models.Record {
	if u == nil {
		return nil
	}
	t := s.tables.Users

	lookups := []struct{ field, value string }{
		{t.Email, strings.TrimSpace(u.Email)},
		{t.UserID, u.Identifier()},
	}
	for _, l := range lookups {
		if l.field == "" || l.value == "" {
			continue
		}
		recs, err := s.store.FindByField(ctx, t.Name, l.field, l.value)
		if err != nil {
			log.Warn().Err(err).Str("field", l.field).Msg("User lookup failed, continuing without enrichment")
			continue
		}
		if len(recs) > 0 {
			return &recs[0]
		}
	}
	return nil
}
