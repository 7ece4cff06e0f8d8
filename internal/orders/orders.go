// Package orders runs the service-order workflow: it resolves cost snapshots,
// prices the order once on every write and stores the result with it.
package orders

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/attachments"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/validation"
)

// Observer is told about every saved order.
type Observer interface {
	OrderSaved(status string, negativeCost bool)
}

type Service struct {
	store    store.Store
	validate *validation.Validator
	audit    *audit.Recorder
	state    *appstate.State
	files    attachments.Storage
	observer Observer
	log      logrus.FieldLogger
	now      func() time.Time
}

type Option func(*Service)

// WithAttachments enables file uploads on orders.
func WithAttachments(files attachments.Storage) Option {
	return func(s *Service) { s.files = files }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func NewService(st store.Store, v *validation.Validator, rec *audit.Recorder, state *appstate.State, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{store: st, validate: v, audit: rec, state: state, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) locale() string {
	return s.state.Preferences().Locale
}

func (s *Service) List(ctx context.Context, q store.Query) (store.Page[model.ServiceOrder], error) {
	return s.store.ListOrders(ctx, q)
}

// Get returns the order exactly as stored; the breakdown is not recomputed.
func (s *Service) Get(ctx context.Context, id string) (model.ServiceOrder, error) {
	return s.store.GetOrder(ctx, id)
}

// Preview prices an unsaved order. Snapshots are taken from the current
// catalog and nothing is stored.
func (s *Service) Preview(ctx context.Context, o model.ServiceOrder) (model.ServiceOrder, error) {
	prepare(&o)
	if o.Status == "" {
		o.Status = model.StatusQuote
	}
	if err := s.validate.Struct(o, s.locale()); err != nil {
		return o, err
	}
	if err := s.resolveSnapshots(ctx, &o, nil); err != nil {
		return o, err
	}
	o.Recalculate()
	return o, nil
}

func (s *Service) Create(ctx context.Context, o model.ServiceOrder) (model.ServiceOrder, error) {
	prepare(&o)
	if o.Status == "" {
		o.Status = model.StatusQuote
	}
	if err := s.validate.Struct(o, s.locale()); err != nil {
		return o, err
	}

	existing, err := s.store.ListOrders(ctx, store.Query{Limit: 1})
	if err != nil {
		return o, err
	}
	if err := plans.CheckCreate(s.state.Preferences().Plan, model.EntityServiceOrder, existing.Total); err != nil {
		return o, err
	}

	if err := s.checkClient(ctx, o.ClientID); err != nil {
		return o, err
	}
	if err := s.resolveSnapshots(ctx, &o, nil); err != nil {
		return o, err
	}

	now := s.now().UTC()
	o.ID = ""
	o.Payments, o.Comments, o.Attachments = []model.Payment{}, []model.Comment{}, []model.Attachment{}
	o.CreatedAt, o.UpdatedAt = now, now
	o.EnsureIDs()
	o.Recalculate()

	if err := s.save(ctx, o, model.AuditCreate, nil); err != nil {
		return o, err
	}
	return o, nil
}

// Update replaces the editable fields of an order. Lines that keep their ID and
// material keep their cost snapshot even when the request omits it.
func (s *Service) Update(ctx context.Context, id string, o model.ServiceOrder) (model.ServiceOrder, error) {
	before, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}

	prepare(&o)
	if o.Status == "" {
		o.Status = before.Status
	}
	if err := s.validate.Struct(o, s.locale()); err != nil {
		return o, err
	}
	if o.ClientID != before.ClientID {
		if err := s.checkClient(ctx, o.ClientID); err != nil {
			return o, err
		}
	}
	if err := s.resolveSnapshots(ctx, &o, &before); err != nil {
		return o, err
	}

	o.ID = id
	o.Payments, o.Comments, o.Attachments = before.Payments, before.Comments, before.Attachments
	o.CreatedAt, o.UpdatedAt = before.CreatedAt, s.now().UTC()
	o.EnsureIDs()
	o.Recalculate()

	if err := s.save(ctx, o, model.AuditUpdate, &before); err != nil {
		return o, err
	}
	return o, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	before, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if s.files != nil {
		for _, a := range before.Attachments {
			if err := s.files.Delete(ctx, a.ObjectKey); err != nil {
				s.log.WithField("key", a.ObjectKey).WithError(err).Warn("delete attachment object")
			}
		}
	}

	if err := s.audit.Record(ctx, model.EntityServiceOrder, id, model.AuditDelete, before, nil); err != nil {
		s.log.WithField("order_id", id).WithError(err).Warn("record audit entry")
	}
	s.state.Publish(appstate.Event{Topic: appstate.TopicOrders, EntityID: id})
	return nil
}

// ChangeStatus moves an order to any of the known statuses. The stored
// breakdown is left as it is.
func (s *Service) ChangeStatus(ctx context.Context, id string, status model.Status) (model.ServiceOrder, error) {
	before, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return before, err
	}
	if !status.Valid() {
		return before, validation.Errors{"status": s.message("status")}
	}

	o := before
	o.Status = status
	o.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, o, model.AuditStatus, &before); err != nil {
		return o, err
	}
	return o, nil
}

func (s *Service) AddPayment(ctx context.Context, id string, p model.Payment) (model.ServiceOrder, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	p.Method = strings.TrimSpace(p.Method)
	if err := s.validate.Struct(p, s.locale()); err != nil {
		return o, err
	}

	before := o
	p.ID = model.NewID()
	if p.PaidAt.IsZero() {
		p.PaidAt = s.now().UTC()
	}
	o.Payments = append(append([]model.Payment{}, o.Payments...), p)
	o.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, o, model.AuditUpdate, &before); err != nil {
		return o, err
	}
	return o, nil
}

func (s *Service) AddComment(ctx context.Context, id string, c model.Comment) (model.ServiceOrder, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return o, err
	}
	c.Text = strings.TrimSpace(c.Text)
	if err := s.validate.Struct(c, s.locale()); err != nil {
		return o, err
	}

	before := o
	c.ID = model.NewID()
	c.CreatedAt = s.now().UTC()
	if c.Author == "" {
		c.Author = audit.UserFrom(ctx)
	}
	o.Comments = append(append([]model.Comment{}, o.Comments...), c)
	o.UpdatedAt = c.CreatedAt
	if err := s.save(ctx, o, model.AuditUpdate, &before); err != nil {
		return o, err
	}
	return o, nil
}

// AddAttachment uploads r to object storage and records it on the order.
func (s *Service) AddAttachment(ctx context.Context, id, filename, contentType string, r io.Reader, size int64) (model.Attachment, error) {
	if s.files == nil {
		return model.Attachment{}, attachments.ErrNotConfigured
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return model.Attachment{}, err
	}
	if err := plans.CheckAttachment(s.state.Preferences().Plan, len(o.Attachments)); err != nil {
		return model.Attachment{}, err
	}

	a := model.Attachment{
		ID:          model.NewID(),
		Name:        filename,
		ObjectKey:   attachments.ObjectKey(id, filename),
		ContentType: attachments.ContentType(contentType, filename),
		Size:        size,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.files.Put(ctx, a.ObjectKey, r, size, a.ContentType); err != nil {
		return a, err
	}

	before := o
	o.Attachments = append(append([]model.Attachment{}, o.Attachments...), a)
	o.UpdatedAt = a.CreatedAt
	if err := s.save(ctx, o, model.AuditUpdate, &before); err != nil {
		if delErr := s.files.Delete(ctx, a.ObjectKey); delErr != nil {
			s.log.WithField("key", a.ObjectKey).WithError(delErr).Warn("remove orphaned attachment")
		}
		return a, err
	}
	return a, nil
}

// AttachmentURL returns a temporary download link for one of the order's files.
func (s *Service) AttachmentURL(ctx context.Context, id, attachmentID string) (string, error) {
	if s.files == nil {
		return "", attachments.ErrNotConfigured
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}
	for _, a := range o.Attachments {
		if a.ID == attachmentID {
			return s.files.URL(ctx, a.ObjectKey)
		}
	}
	return "", store.ErrNotFound
}

func (s *Service) save(ctx context.Context, o model.ServiceOrder, action model.AuditAction, before *model.ServiceOrder) error {
	negative := o.Breakdown.NegativeCost()
	if negative {
		s.log.WithFields(logrus.Fields{
			"order_id":   o.ID,
			"total_cost": o.Breakdown.TotalCost,
			"discounts":  o.Breakdown.DiscountsTotal,
		}).Warn("service order has a negative total cost")
	}

	if err := s.store.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("save order: %w", err)
	}

	var prev any
	if before != nil {
		prev = *before
	}
	// The order is already stored; a lost audit entry must not report the write as failed.
	if err := s.audit.Record(ctx, model.EntityServiceOrder, o.ID, action, prev, o); err != nil {
		s.log.WithFields(logrus.Fields{"order_id": o.ID, "action": action}).WithError(err).Warn("record audit entry")
	}

	if s.observer != nil {
		s.observer.OrderSaved(string(o.Status), negative)
	}
	s.state.Publish(appstate.Event{Topic: appstate.TopicOrders, EntityID: o.ID})
	return nil
}

func (s *Service) checkClient(ctx context.Context, id string) error {
	_, err := s.store.GetClient(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return validation.Errors{"client_id": s.message("client")}
	}
	if err != nil {
		return fmt.Errorf("load client %s: %w", id, err)
	}
	return nil
}

// prepare trims text and maps unit aliases onto the stored short forms.
func prepare(o *model.ServiceOrder) {
	o.Name = strings.TrimSpace(o.Name)
	o.Status = model.Status(strings.ToLower(strings.TrimSpace(string(o.Status))))
	for i := range o.Materials {
		if unit, ok := model.ParseUnit(string(o.Materials[i].Unit)); ok {
			o.Materials[i].Unit = unit
		}
	}
	if o.Materials == nil {
		o.Materials = []model.MaterialUsageLine{}
	}
	if o.Inks == nil {
		o.Inks = []model.InkUsageLine{}
	}
	if o.Extras == nil {
		o.Extras = []model.AdjustmentLine{}
	}
	if o.Discounts == nil {
		o.Discounts = []model.AdjustmentLine{}
	}
}

// resolveSnapshots fills every line's cost snapshot. A line keeps a snapshot it
// already carries, then the one stored on the same line of existing, and only
// then reads the current catalog cost.
func (s *Service) resolveSnapshots(ctx context.Context, o *model.ServiceOrder, existing *model.ServiceOrder) error {
	verrs := validation.Errors{}

	prevMaterials := map[string]model.MaterialUsageLine{}
	prevInks := map[string]model.InkUsageLine{}
	if existing != nil {
		for _, l := range existing.Materials {
			prevMaterials[l.ID] = l
		}
		for _, l := range existing.Inks {
			prevInks[l.ID] = l
		}
	}

	for i := range o.Materials {
		line := &o.Materials[i]
		if prev, ok := prevMaterials[line.ID]; ok && line.ID != "" && prev.MaterialID == line.MaterialID {
			if line.CostPerUnitSnapshot == nil {
				line.CostPerUnitSnapshot = prev.CostPerUnitSnapshot
			}
			if line.Unit == "" {
				line.Unit = prev.Unit
			}
			if line.MaterialName == "" {
				line.MaterialName = prev.MaterialName
			}
		}
		if line.CostPerUnitSnapshot != nil && line.Unit != "" && line.MaterialName != "" {
			continue
		}

		m, err := s.store.GetMaterial(ctx, line.MaterialID)
		if errors.Is(err, store.ErrNotFound) {
			if line.CostPerUnitSnapshot == nil || line.Unit == "" {
				verrs[fmt.Sprintf("materials[%d].material_id", i)] = s.message("material")
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("load material %s: %w", line.MaterialID, err)
		}
		if line.CostPerUnitSnapshot == nil {
			cost := m.CostPerUnit
			line.CostPerUnitSnapshot = &cost
		}
		if line.Unit == "" {
			line.Unit = m.Unit
		}
		if line.MaterialName == "" {
			line.MaterialName = m.Name
		}
	}

	for i := range o.Inks {
		line := &o.Inks[i]
		if prev, ok := prevInks[line.ID]; ok && line.ID != "" && prev.InkID == line.InkID {
			if line.CostPerLiterSnapshot == nil {
				line.CostPerLiterSnapshot = prev.CostPerLiterSnapshot
			}
			if line.InkName == "" {
				line.InkName = prev.InkName
			}
		}
		if line.CostPerLiterSnapshot != nil && line.InkName != "" {
			continue
		}

		ink, err := s.store.GetInk(ctx, line.InkID)
		if errors.Is(err, store.ErrNotFound) {
			if line.CostPerLiterSnapshot == nil {
				verrs[fmt.Sprintf("inks[%d].ink_id", i)] = s.message("ink")
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("load ink %s: %w", line.InkID, err)
		}
		if line.CostPerLiterSnapshot == nil {
			cost := ink.CostPerLiter
			line.CostPerLiterSnapshot = &cost
		}
		if line.InkName == "" {
			line.InkName = ink.Name
		}
	}

	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

var messages = map[string][2]string{
	"client":   {"cliente não encontrado", "client not found"},
	"material": {"material não encontrado", "material not found"},
	"ink":      {"tinta não encontrada", "ink not found"},
	"status":   {"status deve ser quote, approved, production ou completed", "status must be quote, approved, production or completed"},
}

func (s *Service) message(key string) string {
	m := messages[key]
	if model.NormalizeLocale(s.locale()) == "pt-BR" {
		return m[0]
	}
	return m[1]
}
