// Package backup exports every record of the shop into one JSON document and
// restores such a document into any store.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/store"
)

// ErrInvalidBackup is returned when a document is not a backup this version can restore.
var ErrInvalidBackup = errors.New("invalid backup file")

// Version is the document format written by Export.
const Version = 1

type Meta struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Plan       model.Plan `json:"plan"`
}

// Document is the backup file. Users are never exported.
type Document struct {
	Meta          *Meta                `json:"meta"`
	Settings      *model.Settings      `json:"settings,omitempty"`
	Clients       []model.Client       `json:"clients"`
	Materials     []model.Material     `json:"materials"`
	Inks          []model.Ink          `json:"inks"`
	ServiceOrders []model.ServiceOrder `json:"service_orders"`
	AuditLogs     []model.AuditEntry   `json:"audit_logs,omitempty"`
}

// Stats counts what an import wrote.
type Stats struct {
	Clients      int `json:"clients"`
	Materials    int `json:"materials"`
	Inks         int `json:"inks"`
	Orders       int `json:"orders"`
	AuditEntries int `json:"audit_entries"`
}

type Service struct {
	store store.Store
	state *appstate.State
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(s store.Store, state *appstate.State, log logrus.FieldLogger) *Service {
	return &Service{store: s, state: state, log: log, now: time.Now}
}

// Export writes the whole shop as indented JSON. It needs the local backup feature.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	plan := s.state.Preferences().Plan
	if err := plans.Require(plan, plans.FeatureLocalBackup); err != nil {
		return err
	}

	doc := Document{Meta: &Meta{Version: Version, ExportedAt: s.now().UTC(), Plan: plan}}
	settings, err := s.store.GetSettings(ctx)
	switch {
	case err == nil:
		doc.Settings = &settings
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	if doc.Clients, err = collect(ctx, s.store.ListClients); err != nil {
		return fmt.Errorf("export clients: %w", err)
	}
	if doc.Materials, err = collect(ctx, s.store.ListMaterials); err != nil {
		return fmt.Errorf("export materials: %w", err)
	}
	if doc.Inks, err = collect(ctx, s.store.ListInks); err != nil {
		return fmt.Errorf("export inks: %w", err)
	}
	if doc.ServiceOrders, err = collect(ctx, s.store.ListOrders); err != nil {
		return fmt.Errorf("export orders: %w", err)
	}
	if doc.AuditLogs, err = collect(ctx, s.store.ListAudit); err != nil {
		return fmt.Errorf("export audit log: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"clients":   len(doc.Clients),
		"materials": len(doc.Materials),
		"inks":      len(doc.Inks),
		"orders":    len(doc.ServiceOrders),
	}).Info("backup exported")
	return nil
}

// Decode reads and checks a backup document.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return doc, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if doc.Meta == nil || doc.Clients == nil || doc.Materials == nil || doc.Inks == nil || doc.ServiceOrders == nil {
		return doc, fmt.Errorf("%w: missing sections", ErrInvalidBackup)
	}
	if doc.Meta.Version < 1 || doc.Meta.Version > Version {
		return doc, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, doc.Meta.Version)
	}
	return doc, nil
}

// Import restores a backup. Records are matched by ID: existing ones are
// overwritten, missing ones created. Plan limits do not apply to a restore and
// stored breakdowns are kept as they are.
func (s *Service) Import(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	doc, err := Decode(r)
	if err != nil {
		return stats, err
	}

	if doc.Settings != nil {
		settings := *doc.Settings
		settings.Normalize()
		if err := s.store.SaveSettings(ctx, settings); err != nil {
			return stats, fmt.Errorf("import settings: %w", err)
		}
		prefs := appstate.FromSettings(settings)
		prefs.SidebarCollapsed = s.state.Preferences().SidebarCollapsed
		s.state.SetPreferences(prefs)
	}

	for _, c := range doc.Clients {
		if err := upsert(ctx, c.ID, c, s.store.GetClient, s.store.CreateClient, s.store.UpdateClient); err != nil {
			return stats, fmt.Errorf("import client %s: %w", c.ID, err)
		}
		stats.Clients++
	}
	for _, m := range doc.Materials {
		if err := upsert(ctx, m.ID, m, s.store.GetMaterial, s.store.CreateMaterial, s.store.UpdateMaterial); err != nil {
			return stats, fmt.Errorf("import material %s: %w", m.ID, err)
		}
		stats.Materials++
	}
	for _, i := range doc.Inks {
		if err := upsert(ctx, i.ID, i, s.store.GetInk, s.store.CreateInk, s.store.UpdateInk); err != nil {
			return stats, fmt.Errorf("import ink %s: %w", i.ID, err)
		}
		stats.Inks++
	}
	for _, o := range doc.ServiceOrders {
		o.EnsureIDs()
		if err := s.store.SaveOrder(ctx, o); err != nil {
			return stats, fmt.Errorf("import order %s: %w", o.ID, err)
		}
		stats.Orders++
	}

	if len(doc.AuditLogs) > 0 {
		existing, err := collect(ctx, s.store.ListAudit)
		if err != nil {
			return stats, fmt.Errorf("read audit log: %w", err)
		}
		seen := make(map[string]bool, len(existing))
		for _, e := range existing {
			seen[e.ID] = true
		}
		for _, e := range doc.AuditLogs {
			if e.ID == "" || seen[e.ID] {
				continue
			}
			if err := s.store.AppendAudit(ctx, e); err != nil {
				return stats, fmt.Errorf("import audit entry %s: %w", e.ID, err)
			}
			seen[e.ID] = true
			stats.AuditEntries++
		}
	}

	s.state.Publish(appstate.Event{Topic: appstate.TopicCatalog})
	s.state.Publish(appstate.Event{Topic: appstate.TopicOrders})
	s.log.WithFields(logrus.Fields{
		"clients":   stats.Clients,
		"materials": stats.Materials,
		"inks":      stats.Inks,
		"orders":    stats.Orders,
		"audit":     stats.AuditEntries,
	}).Info("backup imported")
	return stats, nil
}

func upsert[T any](
	ctx context.Context,
	id string,
	v T,
	get func(context.Context, string) (T, error),
	create, update func(context.Context, T) error,
) error {
	if id == "" {
		return fmt.Errorf("%w: record without id", ErrInvalidBackup)
	}
	_, err := get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return create(ctx, v)
	case err != nil:
		return err
	default:
		return update(ctx, v)
	}
}

// collect pages through a list operation until every record is read.
func collect[T any](ctx context.Context, list func(context.Context, store.Query) (store.Page[T], error)) ([]T, error) {
	q := store.Query{Page: 1, Limit: store.MaxLimit}
	out := []T{}
	for {
		page, err := list(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if len(page.Items) == 0 || len(out) >= page.Total {
			return out, nil
		}
		q.Page++
	}
}
