package sqlstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/signworks/internal/db"
	"github.com/Simplici0/signworks/internal/migrations"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, migrations.Up(database.DB.DB, database.Dialect))

	s := New(database.DB)
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(v float64) *float64 { return &v }

func TestClientCRUDAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, name := range []string{"Padaria Central", "Oficina do Zé", "Padaria Nova"} {
		require.NoError(t, s.CreateClient(ctx, model.Client{ID: model.NewID(), Name: name, CreatedAt: now, UpdatedAt: now}))
	}

	page, err := s.ListClients(ctx, store.Query{Search: "PADARIA"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Padaria Central", page.Items[0].Name)

	c := page.Items[1]
	c.Phone = "11 99999-0000"
	require.NoError(t, s.UpdateClient(ctx, c))

	got, err := s.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "11 99999-0000", got.Phone)

	require.NoError(t, s.DeleteClient(ctx, c.ID))
	_, err = s.GetClient(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteClient(ctx, c.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateClient(ctx, c), store.ErrNotFound)
}

func TestListPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, name := range []string{"Lona", "Vinil", "Papel", "ACM", "Tecido"} {
		require.NoError(t, s.CreateMaterial(ctx, model.Material{
			ID: model.NewID(), Name: name, Unit: pricing.SquareMeter, CostPerUnit: 10, CreatedAt: now, UpdatedAt: now,
		}))
	}

	page, err := s.ListMaterials(ctx, store.Query{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Papel", page.Items[0].Name)
	assert.Equal(t, "Tecido", page.Items[1].Name)
	assert.Equal(t, pricing.SquareMeter, page.Items[0].Unit)
}

func sampleOrder(clientID string, created time.Time) model.ServiceOrder {
	o := model.ServiceOrder{
		ClientID: clientID,
		Name:     "Fachada loja",
		Status:   model.StatusQuote,
		Materials: []model.MaterialUsageLine{
			{MaterialID: "mat-1", MaterialName: "Lona", Unit: pricing.SquareMeter, Width: ptr(3), Height: ptr(2), CostPerUnitSnapshot: ptr(10)},
			{MaterialID: "mat-2", MaterialName: "Fita", Unit: pricing.LinearMeter, LengthMeters: ptr(5), CostPerUnitSnapshot: ptr(12.3)},
		},
		Inks:       []model.InkUsageLine{{InkID: "ink-1", InkName: "Ciano", Milliliters: 150, CostPerLiterSnapshot: ptr(45)}},
		LaborHours: ptr(2),
		LaborRate:  ptr(25),
		Extras:     []model.AdjustmentLine{{Description: "Instalação", Value: 10}},
		Discounts:  []model.AdjustmentLine{{Description: "Fidelidade", Value: 2.5}},
		Payments:   []model.Payment{{PaidAt: created, Amount: 50, Method: "pix"}},
		Comments:   []model.Comment{{Author: "ana", Text: "Cliente pediu prova", CreatedAt: created}},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	o.EnsureIDs()
	o.Recalculate()
	return o
}

func TestSaveOrderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	o := sampleOrder("client-1", created)
	require.NoError(t, s.SaveOrder(ctx, o))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)

	assert.Equal(t, o.Breakdown, got.Breakdown)
	assert.True(t, created.Equal(got.CreatedAt))
	require.Len(t, got.Materials, 2)
	assert.Equal(t, "Lona", got.Materials[0].MaterialName)
	assert.Nil(t, got.Materials[0].LengthMeters)
	assert.Nil(t, got.Materials[0].Count)
	assert.Equal(t, 12.3, *got.Materials[1].CostPerUnitSnapshot)
	require.Len(t, got.Inks, 1)
	assert.Equal(t, 45.0, *got.Inks[0].CostPerLiterSnapshot)
	require.Len(t, got.Extras, 1)
	require.Len(t, got.Discounts, 1)
	assert.Equal(t, 2.5, got.Discounts[0].Value)
	assert.Nil(t, got.MarkupPercent)
	assert.Nil(t, got.ManualPrice)
	assert.Equal(t, 50.0, got.PaidTotal())
	require.Len(t, got.Comments, 1)
	assert.Empty(t, got.Attachments)
}

func TestSaveOrderReplacesLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := sampleOrder("client-1", time.Now())
	require.NoError(t, s.SaveOrder(ctx, o))

	o.Materials = o.Materials[:1]
	o.Extras = nil
	o.Status = model.StatusApproved
	o.Recalculate()
	require.NoError(t, s.SaveOrder(ctx, o))

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Len(t, got.Materials, 1)
	assert.Empty(t, got.Extras)
	assert.Equal(t, o.Breakdown.TotalCost, got.Breakdown.TotalCost)
}

func TestListOrdersFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	march := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC)

	a := sampleOrder("client-a", march)
	b := sampleOrder("client-b", april)
	b.Status = model.StatusCompleted
	require.NoError(t, s.SaveOrder(ctx, a))
	require.NoError(t, s.SaveOrder(ctx, b))

	all, err := s.ListOrders(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	assert.Equal(t, b.ID, all.Items[0].ID, "newest first")
	assert.Len(t, all.Items[1].Materials, 2, "lines are loaded for listed orders")

	completed, err := s.ListOrders(ctx, store.Query{Status: model.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, completed.Total)

	byClient, err := s.ListOrders(ctx, store.Query{ClientID: "client-a"})
	require.NoError(t, err)
	require.Len(t, byClient.Items, 1)
	assert.Equal(t, a.ID, byClient.Items[0].ID)

	inMarch, err := s.ListOrders(ctx, store.Query{
		From: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, inMarch.Items, 1)
	assert.Equal(t, a.ID, inMarch.Items[0].ID)
}

func TestDeleteOrderCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	o := sampleOrder("client-1", time.Now())
	require.NoError(t, s.SaveOrder(ctx, o))
	require.NoError(t, s.DeleteOrder(ctx, o.ID))

	var remaining int
	require.NoError(t, s.db.Get(&remaining, `SELECT COUNT(*) FROM order_materials`))
	assert.Zero(t, remaining)

	_, err := s.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSettingsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	settings := model.DefaultSettings()
	settings.UpdatedAt = time.Now()
	require.NoError(t, s.SaveSettings(ctx, settings))

	settings.Currency = "USD"
	settings.Plan = model.PlanPro
	require.NoError(t, s.SaveSettings(ctx, settings))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, model.PlanPro, got.Plan)
	assert.Equal(t, 40.0, got.DefaultMarkupPercent)
}

func TestUsersAndAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, model.User{ID: model.NewID(), Email: "admin@local", PasswordHash: "hash", CreatedAt: time.Now()}))
	u, err := s.GetUserByEmail(ctx, "admin@local")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)

	_, err = s.GetUserByEmail(ctx, "nobody@local")
	assert.ErrorIs(t, err, store.ErrNotFound)

	after, _ := json.Marshal(map[string]string{"name": "Lona"})
	require.NoError(t, s.AppendAudit(ctx, model.AuditEntry{
		ID: model.NewID(), Entity: model.EntityMaterial, EntityID: "mat-1",
		Action: model.AuditCreate, After: after, UserID: u.ID, CreatedAt: time.Now(),
	}))

	page, err := s.ListAudit(ctx, store.Query{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.Items[0].Before)
	assert.JSONEq(t, `{"name":"Lona"}`, string(page.Items[0].After))
	assert.Equal(t, model.AuditCreate, page.Items[0].Action)
}

func TestCountAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateInk(ctx, model.Ink{ID: model.NewID(), Name: "Ciano", CostPerLiter: 45, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.SaveOrder(ctx, sampleOrder("client-1", now)))

	counts, err := store.CountAll(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Inks: 1, Orders: 1}, counts)
}
