package orders

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/attachments"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/events"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/validation"
)

type memoryFiles struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *memoryFiles) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = string(data)
	return nil
}

func (m *memoryFiles) URL(_ context.Context, key string) (string, error) {
	return "https://files.local/" + key, nil
}

func (m *memoryFiles) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type countingObserver struct {
	saved, negative int
}

func (c *countingObserver) OrderSaved(_ string, negative bool) {
	c.saved++
	if negative {
		c.negative++
	}
}

// auditDown refuses every audit entry and passes everything else through.
type auditDown struct {
	store.Store
}

func (auditDown) AppendAudit(context.Context, model.AuditEntry) error {
	return errors.New("audit table is locked")
}

type fixture struct {
	svc      *Service
	store    store.Store
	state    *appstate.State
	files    *memoryFiles
	observer *countingObserver
	hook     *logtest.Hook

	clientID, lonaID, fitaID, cianoID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	v, err := validation.New()
	require.NoError(t, err)

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	state := appstate.New(appstate.FromSettings(model.DefaultSettings()))
	files := &memoryFiles{objects: map[string]string{}}
	observer := &countingObserver{}

	f := &fixture{
		svc: NewService(s, v, audit.NewRecorder(s, events.Noop{}, log), state, log,
			WithAttachments(files), WithObserver(observer)),
		store:    s,
		state:    state,
		files:    files,
		observer: observer,
		hook:     hook,
		clientID: "client-1",
		lonaID:   "lona",
		fitaID:   "fita",
		cianoID:  "ciano",
	}

	ctx := context.Background()
	require.NoError(t, s.CreateClient(ctx, model.Client{ID: f.clientID, Name: "Padaria Central"}))
	require.NoError(t, s.CreateMaterial(ctx, model.Material{ID: f.lonaID, Name: "Lona", Unit: pricing.SquareMeter, CostPerUnit: 10}))
	require.NoError(t, s.CreateMaterial(ctx, model.Material{ID: f.fitaID, Name: "Fita", Unit: pricing.LinearMeter, CostPerUnit: 12.3}))
	require.NoError(t, s.CreateInk(ctx, model.Ink{ID: f.cianoID, Name: "Ciano", CostPerLiter: 45}))
	return f
}

func ptr(v float64) *float64 { return &v }

func (f *fixture) order() model.ServiceOrder {
	return model.ServiceOrder{
		ClientID: f.clientID,
		Name:     "Fachada",
		Materials: []model.MaterialUsageLine{
			{MaterialID: f.lonaID, Width: ptr(3), Height: ptr(2)},
			{MaterialID: f.fitaID, Unit: "linear-meter", LengthMeters: ptr(5)},
		},
		Inks:          []model.InkUsageLine{{InkID: f.cianoID, Milliliters: 150}},
		LaborHours:    ptr(2),
		LaborRate:     ptr(25),
		Extras:        []model.AdjustmentLine{{Description: "Instalação", Value: 10}},
		Discounts:     []model.AdjustmentLine{{Description: "Fidelidade", Value: 2.5}},
		MarkupPercent: ptr(40),
	}
}

func TestCreateResolvesSnapshotsAndPrices(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Create(context.Background(), f.order())
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, model.StatusQuote, o.Status)
	assert.Equal(t, "Lona", o.Materials[0].MaterialName)
	assert.Equal(t, pricing.SquareMeter, o.Materials[0].Unit)
	assert.Equal(t, pricing.LinearMeter, o.Materials[1].Unit)
	assert.Equal(t, 10.0, *o.Materials[0].CostPerUnitSnapshot)
	assert.Equal(t, 45.0, *o.Inks[0].CostPerLiterSnapshot)

	// 60 + 61.50 + 6.75 + 50 + 10 - 2.50
	assert.Equal(t, pricing.Breakdown{
		MaterialCost:   121.5,
		InkCost:        6.75,
		LaborCost:      50,
		ExtrasTotal:    10,
		DiscountsTotal: 2.5,
		TotalCost:      185.75,
		SalePrice:      260.05,
		Profit:         74.3,
		MarginPercent:  28.57,
	}, o.Breakdown)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Breakdown, stored.Breakdown)
	assert.Equal(t, 1, f.observer.saved)
}

func TestMasterCostChangesNeverReachSavedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.order())
	require.NoError(t, err)

	lona, err := f.store.GetMaterial(ctx, f.lonaID)
	require.NoError(t, err)
	lona.CostPerUnit = 99
	require.NoError(t, f.store.UpdateMaterial(ctx, lona))

	stored, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Breakdown, stored.Breakdown)

	// Edit the order without touching the line, sending it without its snapshot.
	edit := stored
	edit.Name = "Fachada nova"
	edit.Materials[0].CostPerUnitSnapshot = nil
	updated, err := f.svc.Update(ctx, created.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, created.Breakdown, updated.Breakdown)
	assert.Equal(t, 10.0, *updated.Materials[0].CostPerUnitSnapshot)

	// A new line picks up the current master cost; the old one keeps its snapshot.
	updated.Materials = append(updated.Materials, model.MaterialUsageLine{MaterialID: f.lonaID, Width: ptr(1), Height: ptr(1)})
	again, err := f.svc.Update(ctx, created.ID, updated)
	require.NoError(t, err)
	require.Len(t, again.Materials, 3)
	assert.Equal(t, 10.0, *again.Materials[0].CostPerUnitSnapshot)
	assert.Equal(t, 99.0, *again.Materials[2].CostPerUnitSnapshot)
	assert.Equal(t, 220.5, again.Breakdown.MaterialCost)
	assert.Equal(t, created.CreatedAt, again.CreatedAt)
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	f := newFixture(t)

	o := f.order()
	o.Materials[1].MaterialID = "missing"
	_, err := f.svc.Create(context.Background(), o)

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "material não encontrado", verrs["materials[1].material_id"])

	o = f.order()
	o.ClientID = "nobody"
	_, err = f.svc.Create(context.Background(), o)
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "client_id")
}

func TestCreateValidatesOrder(t *testing.T) {
	f := newFixture(t)

	o := f.order()
	o.Name = "  "
	o.Status = "shipped"
	_, err := f.svc.Create(context.Background(), o)

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "name")
	assert.Contains(t, verrs, "status")
}

func TestPreviewDoesNotStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o := f.order()
	o.ManualPrice = ptr(100)
	preview, err := f.svc.Preview(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, 100.0, preview.Breakdown.SalePrice)
	assert.Equal(t, -85.75, preview.Breakdown.Profit)

	page, err := f.svc.List(ctx, store.Query{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithUser(context.Background(), "admin")

	o, err := f.svc.Create(ctx, f.order())
	require.NoError(t, err)

	_, err = f.svc.ChangeStatus(ctx, o.ID, "shipped")
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)

	// Any known status may follow any other.
	done, err := f.svc.ChangeStatus(ctx, o.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, o.Breakdown, done.Breakdown)

	back, err := f.svc.ChangeStatus(ctx, o.ID, model.StatusQuote)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQuote, back.Status)

	entries, err := f.store.ListAudit(ctx, store.Query{})
	require.NoError(t, err)
	statusChanges := 0
	for _, e := range entries.Items {
		if e.Action == model.AuditStatus {
			statusChanges++
		}
	}
	assert.Equal(t, 2, statusChanges)
}

func TestPaymentsAndComments(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithUser(context.Background(), "admin")

	o, err := f.svc.Create(ctx, f.order())
	require.NoError(t, err)

	_, err = f.svc.AddPayment(ctx, o.ID, model.Payment{Amount: 0, Method: "pix"})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)

	_, err = f.svc.AddPayment(ctx, o.ID, model.Payment{Amount: 100, Method: "pix"})
	require.NoError(t, err)
	withComment, err := f.svc.AddComment(ctx, o.ID, model.Comment{Text: "Sinal recebido"})
	require.NoError(t, err)

	assert.Equal(t, 100.0, withComment.PaidTotal())
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, "admin", withComment.Comments[0].Author)
	assert.Equal(t, o.Breakdown, withComment.Breakdown)

	// Payments survive an edit of the order.
	edited, err := f.svc.Update(ctx, o.ID, withComment)
	require.NoError(t, err)
	assert.Len(t, edited.Payments, 1)
}

func TestAttachmentsRespectPlanLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.Create(ctx, f.order())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		a, err := f.svc.AddAttachment(ctx, o.ID, "arte.png", "", strings.NewReader("png"), 3)
		require.NoError(t, err)
		assert.Equal(t, "image/png", a.ContentType)
	}
	_, err = f.svc.AddAttachment(ctx, o.ID, "arte.png", "", strings.NewReader("png"), 3)
	assert.ErrorIs(t, err, plans.ErrLimitReached)

	stored, err := f.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Attachments, 3)
	assert.Len(t, f.files.objects, 3)

	url, err := f.svc.AttachmentURL(ctx, o.ID, stored.Attachments[0].ID)
	require.NoError(t, err)
	assert.Contains(t, url, stored.Attachments[0].ObjectKey)

	require.NoError(t, f.svc.Delete(ctx, o.ID))
	assert.Empty(t, f.files.objects)
}

func TestAttachmentsWithoutStorage(t *testing.T) {
	f := newFixture(t)
	f.svc.files = nil

	_, err := f.svc.AddAttachment(context.Background(), "any", "a.pdf", "", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, attachments.ErrNotConfigured)
}

func TestNegativeTotalIsKeptAndLogged(t *testing.T) {
	f := newFixture(t)

	o := f.order()
	o.Discounts = []model.AdjustmentLine{{Description: "Cortesia", Value: 500}}
	saved, err := f.svc.Create(context.Background(), o)
	require.NoError(t, err)

	assert.True(t, saved.Breakdown.NegativeCost())
	assert.Less(t, saved.Breakdown.TotalCost, 0.0)
	assert.Equal(t, 1, f.observer.negative)

	var warned bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "negative total cost") {
			warned = true
			assert.Equal(t, saved.ID, entry.Data["order_id"])
		}
	}
	assert.True(t, warned)
}

func TestFreePlanOrderLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, f.store.SaveOrder(ctx, model.ServiceOrder{ID: model.NewID(), ClientID: f.clientID, Name: "x", Status: model.StatusQuote, CreatedAt: now}))
	}
	_, err := f.svc.Create(ctx, f.order())
	assert.ErrorIs(t, err, plans.ErrLimitReached)
}

func TestAuditFailureDoesNotFailCommittedWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := validation.New()
	require.NoError(t, err)
	log, hook := logtest.NewNullLogger()
	svc := NewService(f.store, v, audit.NewRecorder(auditDown{f.store}, events.Noop{}, log), f.state, log,
		WithObserver(f.observer))

	o, err := svc.Create(ctx, f.order())
	require.NoError(t, err)
	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Breakdown, stored.Breakdown)
	assert.Equal(t, 1, f.observer.saved)

	require.NoError(t, svc.Delete(ctx, o.ID))
	_, err = f.store.GetOrder(ctx, o.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	var warnings int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "record audit entry" {
			warnings++
			assert.Equal(t, o.ID, entry.Data["order_id"])
		}
	}
	assert.Equal(t, 2, warnings)

	page, err := f.store.ListAudit(ctx, store.Query{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
