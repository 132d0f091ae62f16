// Package relay turns integration-platform webhook events into store records
// and downstream notifications.
//
// Three event shapes are handled. Provider webhooks are only logged. Sync
// events trigger the ingestion pipeline: fetch the announced records from the
// proxy, drop the ones whose source id is already stored, insert the rest in
// batches and forward each inserted lead. Successful auth events are recorded
// as connection rows, enriched with the owning user when one can be found.
package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"leadrelay/internal/engine/webhooks"
	"leadrelay/internal/platform/config"
	"leadrelay/internal/platform/models"
)

var (
	// ErrPrecondition marks events missing the identifiers a pipeline needs.
	ErrPrecondition = errors.New("precondition failed")
	// ErrConnectionNotFound means no connection row owns the synced records.
	ErrConnectionNotFound = errors.New("connection record not found")
)

// Store is the tabular record store, remote or local.
type Store interface {
	FindByField(ctx context.Context, table, field, value string) ([]models.Record, error)
	CreateRecords(ctx context.Context, table string, fields []models.Fields) ([]models.Record, error)
	CreateRecord(ctx context.Context, table string, fields models.Fields) (models.Record, error)
}

// Source yields the records a sync event announced.
type Source interface {
	ListRecords(ctx context.Context, q models.RecordQuery) ([]models.SyncedRecord, error)
}

type Forwarder interface {
	Forward(ctx context.Context, leads []models.LeadNotification) []webhooks.Delivery
}

type Route int

const (
	RouteInvalid Route = iota
	RouteLog
	RouteSync
	RouteAuth
)

func (r Route) String() string {
	switch r {
	case RouteLog:
		return "log"
	case RouteSync:
		return "sync"
	case RouteAuth:
		return "auth"
	default:
		return "invalid"
	}
}

type Service struct {
	store     Store
	source    Source
	forwarder Forwarder
	tables    config.TablesConfig
	cfg       config.RelayConfig
	now       func() time.Time
}

func NewService(store Store, source Source, forwarder Forwarder, tables config.TablesConfig, cfg config.RelayConfig) *Service {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeBatched
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "Contact"
	}
	return &Service{
		store:     store,
		source:    source,
		forwarder: forwarder,
		tables:    tables,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Classify picks the handling path for e. The first matching rule wins.
func (s *Service) Classify(e *models.WebhookEvent) Route {
	if e == nil {
		return RouteInvalid
	}
	if e.From == models.SourceNango && e.Type == models.EventTypeWebhook {
		return RouteLog
	}
	if e.Type == models.EventTypeSync && s.acceptsModel(e.Model) {
		return RouteSync
	}
	if e.From == models.SourceNango && e.Type == models.EventTypeAuth && e.Success {
		return RouteAuth
	}
	return RouteInvalid
}

func (s *Service) acceptsModel(model string) bool {
	if len(s.cfg.SyncModels) == 0 {
		return true
	}
	return lo.ContainsBy(s.cfg.SyncModels, func(m string) bool {
		return strings.EqualFold(strings.TrimSpace(m), model)
	})
}

func (s *Service) today() string {
	return s.now().UTC().Format("2006-01-02")
}

// set skips fields whose column mapping is blank.
func set(f models.Fields, column string, value any) {
	if column == "" {
		return
	}
	f[column] = value
}

// setText is set for optional text columns: empty values are not written.
func setText(f models.Fields, column, value string) {
	if value == "" {
		return
	}
	set(f, column, value)
}
