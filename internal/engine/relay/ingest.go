package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"leadrelay/internal/engine/webhooks"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/models"
)

// IngestResult summarizes one sync run.
type IngestResult struct {
	Fetched    int
	Duplicates int
	Skipped    int
	Stored     int
	Forwarded  int
	Failed     int
	Records    []models.Record
	Deliveries []webhooks.Delivery
}

// Ingest runs the sync pipeline for e. Lookups and inserts are sequential;
// forwards run concurrently and their failures are only counted.
func (s *Service) Ingest(ctx context.Context, e *models.WebhookEvent) (*IngestResult, error) {
	res := &IngestResult{}
	added := e.Added()
	if added <= 0 {
		return res, nil
	}
	if strings.TrimSpace(e.ConnectionID) == "" || strings.TrimSpace(e.ProviderConfigKey) == "" {
		return nil, fmt.Errorf("%w: missing connectionId or providerConfigKey", ErrPrecondition)
	}

	model := e.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}

	incoming, err := s.source.ListRecords(ctx, models.RecordQuery{
		Model:             model,
		ConnectionID:      e.ConnectionID,
		ProviderConfigKey: e.ProviderConfigKey,
		ModifiedAfter:     e.ModifiedAfter,
		Limit:             added,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s records: %w", model, err)
	}
	res.Fetched = len(incoming)
	if len(incoming) == 0 {
		return res, nil
	}

	owner, err := s.owner(ctx, e.ConnectionID)
	if err != nil {
		return nil, err
	}

	var stored []stagedLead
	if s.cfg.Mode == config.ModeSingle {
		stored, err = s.insertEach(ctx, e, owner, incoming)
	} else {
		var fresh []models.SyncedRecord
		fresh, err = s.dedup(ctx, incoming, res)
		if err == nil {
			stored, err = s.insertBatches(ctx, e, owner, fresh)
		}
	}
	if err != nil {
		return nil, err
	}

	res.Stored = len(stored)
	res.Records = lo.Map(stored, func(l stagedLead, _ int) models.Record { return l.record })
	if len(stored) == 0 {
		return res, nil
	}

	notes := lo.Map(stored, func(l stagedLead, _ int) models.LeadNotification {
		return models.LeadNotification{
			RecordID: l.record.ID,
			Source:   e.ProviderConfigKey,
			Name:     l.lead.DisplayName(),
			Email:    l.lead.Email,
			Phone:    l.lead.ContactPhone(),
			LeadID:   l.lead.ID,
		}
	})
	res.Deliveries = s.forwarder.Forward(ctx, notes)
	res.Failed = webhooks.Failed(res.Deliveries)
	res.Forwarded = len(res.Deliveries) - res.Failed

	log.Info().
		Str("connection_id", e.ConnectionID).
		Int("fetched", res.Fetched).
		Int("duplicates", res.Duplicates).
		Int("stored", res.Stored).
		Int("forward_failed", res.Failed).
		Msg("Sync ingested")
	return res, nil
}

type stagedLead struct {
	lead   models.SyncedRecord
	record models.Record
}

func (s *Service) owner(ctx context.Context, connectionID string) (models.Record, error) {
	t := s.tables.Connections
	recs, err := s.store.FindByField(ctx, t.Name, t.ConnectionID, connectionID)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to resolve connection %s: %w", connectionID, err)
	}
	if len(recs) == 0 {
		return models.Record{}, fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	return recs[0], nil
}

// dedup keeps records whose source id is not stored yet, checking one record
// at a time in input order. Records without an id are skipped and repeated
// ids keep their first occurrence.
func (s *Service) dedup(ctx context.Context, incoming []models.SyncedRecord, res *IngestResult) ([]models.SyncedRecord, error) {
	t := s.tables.Leads
	seen := make(map[string]struct{}, len(incoming))
	fresh := make([]models.SyncedRecord, 0, len(incoming))

	for _, rec := range incoming {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			res.Skipped++
			log.Warn().Str("email", rec.Email).Msg("Skipping synced record without id")
			continue
		}
		if _, dup := seen[id]; dup {
			res.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		existing, err := s.store.FindByField(ctx, t.Name, t.SourceID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check lead %s: %w", id, err)
		}
		if len(existing) > 0 {
			res.Duplicates++
			continue
		}
		fresh = append(fresh, rec)
	}
	return fresh, nil
}

func (s *Service) insertBatches(ctx context.Context, e *models.WebhookEvent, owner models.Record, fresh []models.SyncedRecord) ([]stagedLead, error) {
	var out []stagedLead
	for i, chunk := range lo.Chunk(fresh, models.MaxBatchSize) {
		fields := lo.Map(chunk, func(r models.SyncedRecord, _ int) models.Fields {
			return s.leadFields(r, e.ProviderConfigKey, owner)
		})
		created, err := s.store.CreateRecords(ctx, s.tables.Leads.Name, fields)
		if err != nil {
			return nil, fmt.Errorf("failed to insert lead batch %d: %w", i+1, err)
		}
		if len(created) != len(chunk) {
			return nil, fmt.Errorf("lead batch %d: store returned %d records for %d inserts", i+1, len(created), len(chunk))
		}
		for j := range chunk {
			out = append(out, stagedLead{lead: chunk[j], record: created[j]})
		}
	}
	return out, nil
}

func (s *Service) insertEach(ctx context.Context, e *models.WebhookEvent, owner models.Record, incoming []models.SyncedRecord) ([]stagedLead, error) {
	out := make([]stagedLead, 0, len(incoming))
	for _, r := range incoming {
		created, err := s.store.CreateRecord(ctx, s.tables.Leads.Name, s.leadFields(r, e.ProviderConfigKey, owner))
		if err != nil {
			return nil, fmt.Errorf("failed to insert lead %s: %w", r.ID, err)
		}
		out = append(out, stagedLead{lead: r, record: created})
	}
	return out, nil
}

func (s *Service) leadFields(r models.SyncedRecord, source string, owner models.Record) models.Fields {
	t := s.tables.Leads
	status := r.LeadStatus
	if status == "" {
		status = "Active"
	}

	f := models.Fields{}
	set(f, t.SourceID, r.ID)
	set(f, t.LeadName, r.DisplayName())
	set(f, t.Email, r.Email)
	set(f, t.Phone, r.ContactPhone())
	set(f, t.Status, status)
	set(f, t.Source, source)
	set(f, t.Business, r.Company)
	set(f, t.Imported, true)
	set(f, t.StatusChange, s.today())
	if owner.ID != "" {
		set(f, t.Connection, []string{owner.ID})
	}

	phoneType := r.PhoneType
	if phoneType == "" {
		phoneType = "Mobile"
	}
	set(f, t.PhoneType, phoneType)
	setText(f, t.BusinessID, r.CompanyID)
	setText(f, t.Chaser, r.Owner)
	setText(f, t.LeadType, r.LeadType)
	setText(f, t.LeadField1, r.CustomField1)
	setText(f, t.LeadField2, r.CustomField2)
	setText(f, t.LeadField3, r.CustomField3)
	setText(f, t.Connected, r.CreatedDay())
	setText(f, t.FirstCallRecording, r.FirstCallID)
	setText(f, t.FirstCallURL, r.FirstCallURL)
	setText(f, t.ReportCall, r.ReportCallID)
	setText(f, t.LastCall, r.LastContacted)
	if len(r.UserIDs) > 0 {
		set(f, t.UserFields, r.UserIDs)
	}
	return f
}
