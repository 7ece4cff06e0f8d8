package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/events"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/validation"
)

func newTestService(t *testing.T) (*Service, *appstate.State) {
	t.Helper()
	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	v, err := validation.New()
	require.NoError(t, err)
	state := appstate.New(appstate.Preferences{SidebarCollapsed: true})
	log := logging.Discard()
	return NewService(s, v, audit.NewRecorder(s, events.Noop{}, log), state, log), state
}

func TestGetReturnsDefaultsBeforeFirstSave(t *testing.T) {
	svc, state := newTestService(t)

	got, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)
	assert.Equal(t, "BRL", state.Preferences().Currency)
	assert.True(t, state.Preferences().SidebarCollapsed)
}

func TestUpdateNormalizesAndPublishes(t *testing.T) {
	svc, state := newTestService(t)
	ctx := context.Background()

	var published []appstate.Event
	state.Subscribe(func(ev appstate.Event) { published = append(published, ev) })

	next := model.DefaultSettings()
	next.Locale = "en"
	next.Currency = ""
	next.DefaultUnit = "square-meter"
	next.Plan = model.PlanPro

	saved, err := svc.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, "en-US", saved.Locale)
	assert.Equal(t, "USD", saved.Currency)
	assert.Equal(t, pricing.SquareMeter, saved.DefaultUnit)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPro, got.Plan)

	require.Len(t, published, 1)
	assert.Equal(t, model.PlanPro, published[0].Preferences.Plan)
	assert.True(t, published[0].Preferences.SidebarCollapsed)
}

func TestUpdateRejectsInvalidTax(t *testing.T) {
	svc, _ := newTestService(t)

	next := model.DefaultSettings()
	next.TaxPercent = 150
	_, err := svc.Update(context.Background(), next)

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "tax_percent")
}
