package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/events"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/validation"
)

func newTestService(t *testing.T, plan model.Plan) (*Service, store.Store, *appstate.State) {
	t.Helper()

	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	v, err := validation.New()
	require.NoError(t, err)

	settings := model.DefaultSettings()
	settings.Plan = plan
	state := appstate.New(appstate.FromSettings(settings))
	log := logging.Discard()

	return NewService(s, v, audit.NewRecorder(s, events.Noop{}, log), state, log), s, state
}

func TestCreateMaterialAcceptsUnitAlias(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	m, err := svc.CreateMaterial(context.Background(), model.Material{Name: " Lona 440g ", Unit: "square-meter", CostPerUnit: 18.5})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Lona 440g", m.Name)
	assert.Equal(t, pricing.SquareMeter, m.Unit)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestCreateMaterialRejectsUnknownUnitInPortuguese(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	_, err := svc.CreateMaterial(context.Background(), model.Material{Name: "Lona", Unit: "kg", CostPerUnit: 1})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "unit deve ser m ou m2", verrs["unit"])
}

func TestFreePlanInkLimit(t *testing.T) {
	svc, _, state := newTestService(t, model.PlanFree)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := svc.CreateInk(ctx, model.Ink{Name: fmt.Sprintf("Tinta %02d", i), CostPerLiter: 40})
		require.NoError(t, err)
	}
	_, err := svc.CreateInk(ctx, model.Ink{Name: "Tinta extra", CostPerLiter: 40})
	assert.ErrorIs(t, err, plans.ErrLimitReached)

	prefs := state.Preferences()
	prefs.Plan = model.PlanPro
	state.SetPreferences(prefs)

	_, err = svc.CreateInk(ctx, model.Ink{Name: "Tinta extra", CostPerLiter: 40})
	assert.NoError(t, err)
}

func TestUpdateAndDeleteAreAudited(t *testing.T) {
	svc, s, state := newTestService(t, model.PlanFree)
	ctx := audit.WithUser(context.Background(), "admin")

	var published []appstate.Event
	state.Subscribe(func(ev appstate.Event) { published = append(published, ev) })

	c, err := svc.CreateClient(ctx, model.Client{Name: "Padaria Central"})
	require.NoError(t, err)

	c.Phone = "1199"
	updated, err := svc.UpdateClient(ctx, c.ID, c)
	require.NoError(t, err)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)

	require.NoError(t, svc.DeleteClient(ctx, c.ID))
	_, err = svc.GetClient(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := s.ListAudit(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, 3, entries.Total)
	for _, e := range entries.Items {
		assert.Equal(t, "admin", e.UserID)
		assert.Equal(t, model.EntityClient, e.Entity)
	}
	assert.Len(t, published, 3)
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)
	_, err := svc.UpdateMaterial(context.Background(), "nope", model.Material{Name: "Lona", Unit: pricing.LinearMeter})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type auditDown struct {
	store.Store
}

func (auditDown) AppendAudit(context.Context, model.AuditEntry) error {
	return errors.New("disk full")
}

func TestCreateSucceedsWhenAuditFails(t *testing.T) {
	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	v, err := validation.New()
	require.NoError(t, err)
	log := logging.Discard()
	state := appstate.New(appstate.FromSettings(model.DefaultSettings()))
	svc := NewService(s, v, audit.NewRecorder(auditDown{s}, events.Noop{}, log), state, log)
	ctx := context.Background()

	c, err := svc.CreateClient(ctx, model.Client{Name: "Ana"})
	require.NoError(t, err)
	got, err := s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	require.NoError(t, svc.DeleteClient(ctx, c.ID))
	_, err = s.GetClient(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
