// Package settings reads and writes the shop-wide settings and keeps the
// shared preferences in sync with them.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/model"
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

// Get returns the stored settings, or the defaults before anything was saved.
func (s *Service) Get(ctx context.Context) (model.Settings, error) {
	current, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return current, fmt.Errorf("load settings: %w", err)
	}
	current.Normalize()
	return current, nil
}

// Load publishes the stored settings to the shared preferences. Call once at startup.
func (s *Service) Load(ctx context.Context) (model.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return current, err
	}
	s.setPreferences(current)
	return current, nil
}

func (s *Service) Update(ctx context.Context, next model.Settings) (model.Settings, error) {
	before, err := s.Get(ctx)
	if err != nil {
		return next, err
	}

	next.CompanyName = strings.TrimSpace(next.CompanyName)
	if unit, ok := model.ParseUnit(string(next.DefaultUnit)); ok {
		next.DefaultUnit = unit
	}
	next.Normalize()
	if err := s.validate.Struct(next, next.Locale); err != nil {
		return next, err
	}

	next.UpdatedAt = s.now().UTC()
	if err := s.store.SaveSettings(ctx, next); err != nil {
		return next, fmt.Errorf("save settings: %w", err)
	}
	if err := s.audit.Record(ctx, model.EntitySettings, "settings", model.AuditUpdate, before, next); err != nil {
		s.log.WithError(err).Warn("record audit entry")
	}

	s.setPreferences(next)
	s.log.WithFields(logrus.Fields{"locale": next.Locale, "currency": next.Currency, "plan": next.Plan}).Info("settings updated")
	return next, nil
}

// setPreferences keeps UI-only preferences such as the sidebar state.
func (s *Service) setPreferences(current model.Settings) {
	prefs := appstate.FromSettings(current)
	prefs.SidebarCollapsed = s.state.Preferences().SidebarCollapsed
	s.state.SetPreferences(prefs)
}
