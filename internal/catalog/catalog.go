// Package catalog manages the master data: clients, materials and inks.
// Changes here never touch saved service orders, which keep their own cost snapshots.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/validation"
)

type Service struct {
	store    store.Store
	validate *validation.Validator
	audit    *audit.Recorder
	state    *appstate.State
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewService(s store.Store, v *validation.Validator, rec *audit.Recorder, state *appstate.State, log logrus.FieldLogger) *Service {
	return &Service{store: s, validate: v, audit: rec, state: state, log: log, now: time.Now}
}

func (s *Service) locale() string {
	return s.state.Preferences().Locale
}

// checkLimit refuses a create once the plan's quota for entity is used up.
func (s *Service) checkLimit(ctx context.Context, entity string, count func(context.Context) (int, error)) error {
	current, err := count(ctx)
	if err != nil {
		return err
	}
	return plans.CheckCreate(s.state.Preferences().Plan, entity, current)
}

func (s *Service) changed(ctx context.Context, entity, id string, action model.AuditAction, before, after any) {
	log := s.log.WithFields(logrus.Fields{"entity": entity, "id": id, "action": action})
	if err := s.audit.Record(ctx, entity, id, action, before, after); err != nil {
		log.WithError(err).Warn("record audit entry")
	}
	s.state.Publish(appstate.Event{Topic: appstate.TopicCatalog, EntityID: id})
	log.Info("catalog changed")
}

func (s *Service) ListClients(ctx context.Context, q store.Query) (store.Page[model.Client], error) {
	return s.store.ListClients(ctx, q)
}

func (s *Service) GetClient(ctx context.Context, id string) (model.Client, error) {
	return s.store.GetClient(ctx, id)
}

func (s *Service) CreateClient(ctx context.Context, c model.Client) (model.Client, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validate.Struct(c, s.locale()); err != nil {
		return c, err
	}
	if err := s.checkLimit(ctx, model.EntityClient, func(ctx context.Context) (int, error) {
		page, err := s.store.ListClients(ctx, store.Query{Limit: 1})
		return page.Total, err
	}); err != nil {
		return c, err
	}

	now := s.now().UTC()
	c.ID, c.CreatedAt, c.UpdatedAt = model.NewID(), now, now
	if err := s.store.CreateClient(ctx, c); err != nil {
		return c, fmt.Errorf("create client: %w", err)
	}
	s.changed(ctx, model.EntityClient, c.ID, model.AuditCreate, nil, c)
	return c, nil
}

func (s *Service) UpdateClient(ctx context.Context, id string, c model.Client) (model.Client, error) {
	before, err := s.store.GetClient(ctx, id)
	if err != nil {
		return c, err
	}
	c.Name = strings.TrimSpace(c.Name)
	if err := s.validate.Struct(c, s.locale()); err != nil {
		return c, err
	}

	c.ID, c.CreatedAt, c.UpdatedAt = id, before.CreatedAt, s.now().UTC()
	if err := s.store.UpdateClient(ctx, c); err != nil {
		return c, fmt.Errorf("update client: %w", err)
	}
	s.changed(ctx, model.EntityClient, id, model.AuditUpdate, before, c)
	return c, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	before, err := s.store.GetClient(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	s.changed(ctx, model.EntityClient, id, model.AuditDelete, before, nil)
	return nil
}

func (s *Service) ListMaterials(ctx context.Context, q store.Query) (store.Page[model.Material], error) {
	return s.store.ListMaterials(ctx, q)
}

func (s *Service) GetMaterial(ctx context.Context, id string) (model.Material, error) {
	return s.store.GetMaterial(ctx, id)
}

// normalizeMaterial accepts the long unit aliases before validation.
func normalizeMaterial(m *model.Material) {
	m.Name = strings.TrimSpace(m.Name)
	if unit, ok := model.ParseUnit(string(m.Unit)); ok {
		m.Unit = unit
	}
}

func (s *Service) CreateMaterial(ctx context.Context, m model.Material) (model.Material, error) {
	normalizeMaterial(&m)
	if err := s.validate.Struct(m, s.locale()); err != nil {
		return m, err
	}
	if err := s.checkLimit(ctx, model.EntityMaterial, func(ctx context.Context) (int, error) {
		page, err := s.store.ListMaterials(ctx, store.Query{Limit: 1})
		return page.Total, err
	}); err != nil {
		return m, err
	}

	now := s.now().UTC()
	m.ID, m.CreatedAt, m.UpdatedAt = model.NewID(), now, now
	if err := s.store.CreateMaterial(ctx, m); err != nil {
		return m, fmt.Errorf("create material: %w", err)
	}
	s.changed(ctx, model.EntityMaterial, m.ID, model.AuditCreate, nil, m)
	return m, nil
}

func (s *Service) UpdateMaterial(ctx context.Context, id string, m model.Material) (model.Material, error) {
	before, err := s.store.GetMaterial(ctx, id)
	if err != nil {
		return m, err
	}
	normalizeMaterial(&m)
	if err := s.validate.Struct(m, s.locale()); err != nil {
		return m, err
	}

	m.ID, m.CreatedAt, m.UpdatedAt = id, before.CreatedAt, s.now().UTC()
	if err := s.store.UpdateMaterial(ctx, m); err != nil {
		return m, fmt.Errorf("update material: %w", err)
	}
	s.changed(ctx, model.EntityMaterial, id, model.AuditUpdate, before, m)
	return m, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id string) error {
	before, err := s.store.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMaterial(ctx, id); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	s.changed(ctx, model.EntityMaterial, id, model.AuditDelete, before, nil)
	return nil
}

func (s *Service) ListInks(ctx context.Context, q store.Query) (store.Page[model.Ink], error) {
	return s.store.ListInks(ctx, q)
}

func (s *Service) GetInk(ctx context.Context, id string) (model.Ink, error) {
	return s.store.GetInk(ctx, id)
}

func (s *Service) CreateInk(ctx context.Context, i model.Ink) (model.Ink, error) {
	i.Name = strings.TrimSpace(i.Name)
	if err := s.validate.Struct(i, s.locale()); err != nil {
		return i, err
	}
	if err := s.checkLimit(ctx, model.EntityInk, func(ctx context.Context) (int, error) {
		page, err := s.store.ListInks(ctx, store.Query{Limit: 1})
		return page.Total, err
	}); err != nil {
		return i, err
	}

	now := s.now().UTC()
	i.ID, i.CreatedAt, i.UpdatedAt = model.NewID(), now, now
	if err := s.store.CreateInk(ctx, i); err != nil {
		return i, fmt.Errorf("create ink: %w", err)
	}
	s.changed(ctx, model.EntityInk, i.ID, model.AuditCreate, nil, i)
	return i, nil
}

func (s *Service) UpdateInk(ctx context.Context, id string, i model.Ink) (model.Ink, error) {
	before, err := s.store.GetInk(ctx, id)
	if err != nil {
		return i, err
	}
	i.Name = strings.TrimSpace(i.Name)
	if err := s.validate.Struct(i, s.locale()); err != nil {
		return i, err
	}

	i.ID, i.CreatedAt, i.UpdatedAt = id, before.CreatedAt, s.now().UTC()
	if err := s.store.UpdateInk(ctx, i); err != nil {
		return i, fmt.Errorf("update ink: %w", err)
	}
	s.changed(ctx, model.EntityInk, id, model.AuditUpdate, before, i)
	return i, nil
}

func (s *Service) DeleteInk(ctx context.Context, id string) error {
	before, err := s.store.GetInk(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInk(ctx, id); err != nil {
		return fmt.Errorf("delete ink: %w", err)
	}
	s.changed(ctx, model.EntityInk, id, model.AuditDelete, before, nil)
	return nil
}
