package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/logging"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/store/filestore"
)

func ptr(v float64) *float64 { return &v }

type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
	hits   int
}

func (m *memoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.values[key]
	if !ok {
		return false, nil
	}
	m.hits++
	return true, json.Unmarshal(raw, dst)
}

func (m *memoryCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = raw
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 9, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, plan model.Plan) (*Service, *memoryCache, *appstate.State) {
	t.Helper()

	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.CreateClient(ctx, model.Client{ID: "c1", Name: "Padaria Central"}))
	require.NoError(t, s.CreateClient(ctx, model.Client{ID: "c2", Name: "Oficina Sul"}))

	orders := []model.ServiceOrder{
		{
			ID: "o1", ClientID: "c1", Name: "Faixa", Status: model.StatusCompleted, CreatedAt: day(10, 2),
			Materials:     []model.MaterialUsageLine{{ID: "l1", MaterialID: "lona", MaterialName: "Lona", Unit: pricing.SquareMeter, Width: ptr(2), Height: ptr(1), CostPerUnitSnapshot: ptr(10)}},
			MarkupPercent: ptr(50),
		},
		{
			ID: "o2", ClientID: "c2", Name: "Adesivo", Status: model.StatusCompleted, CreatedAt: day(10, 5),
			Materials:   []model.MaterialUsageLine{{ID: "l2", MaterialID: "fita", MaterialName: "Fita", Unit: pricing.LinearMeter, LengthMeters: ptr(5), CostPerUnitSnapshot: ptr(4)}},
			ManualPrice: ptr(50),
		},
		{
			ID: "o3", ClientID: "c1", Name: "Placa", Status: model.StatusProduction, CreatedAt: day(9, 20),
			Materials:     []model.MaterialUsageLine{{ID: "l3", MaterialID: "lona", MaterialName: "Lona", Unit: pricing.SquareMeter, Width: ptr(1), Height: ptr(1), CostPerUnitSnapshot: ptr(10)}},
			MarkupPercent: ptr(100),
		},
		{
			ID: "o4", ClientID: "c2", Name: "=cmd", Status: model.StatusQuote, CreatedAt: day(10, 10),
			LaborHours: ptr(1), LaborRate: ptr(15),
		},
		{
			ID: "o5", ClientID: "ghost", Name: "Antigo", Status: model.StatusCompleted, CreatedAt: day(8, 1),
			Extras: []model.AdjustmentLine{{ID: "e1", Value: 5}},
		},
	}
	for _, o := range orders {
		o.Recalculate()
		require.NoError(t, s.SaveOrder(ctx, o))
	}

	settings := model.DefaultSettings()
	settings.Plan = plan
	state := appstate.New(appstate.FromSettings(settings))
	cache := &memoryCache{values: map[string][]byte{}}

	svc := NewService(s, cache, state, logging.Discard())
	svc.now = func() time.Time { return now }
	t.Cleanup(svc.Close)
	return svc, cache, state
}

func TestDashboard(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-10", d.Month)
	assert.Equal(t, 80.0, d.Revenue)
	assert.Equal(t, 40.0, d.Cost)
	assert.Equal(t, 40.0, d.Profit)
	assert.Equal(t, 50.0, d.MarginPercent)
	assert.Equal(t, 1, d.InProduction)
	assert.Equal(t, 1, d.PendingQuotes)

	assert.Equal(t, []Ranked{{ID: "lona", Name: "Lona", Value: 30}, {ID: "fita", Name: "Fita", Value: 20}}, d.TopMaterials)
	assert.Equal(t, []Ranked{
		{ID: "c2", Name: "Oficina Sul", Value: 65},
		{ID: "c1", Name: "Padaria Central", Value: 50},
		{ID: "ghost", Name: "Cliente não encontrado", Value: 5},
	}, d.TopClients)

	require.Len(t, d.RecentOrders, 5)
	assert.Equal(t, "o4", d.RecentOrders[0].ID)
	assert.Equal(t, "Orçamento", d.RecentOrders[0].StatusLabel)
	assert.Equal(t, "o5", d.RecentOrders[4].ID)
}

func TestDashboardIsCachedUntilSomethingChanges(t *testing.T) {
	svc, cache, state := newTestService(t, model.PlanFree)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Contains(t, cache.values, "dashboard:2026-10")

	_, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	state.Publish(appstate.Event{Topic: appstate.TopicOrders, EntityID: "o1"})
	assert.NotContains(t, cache.values, "dashboard:2026-10")
}

func TestReport(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	r, err := svc.Report(context.Background(), day(9, 1), day(11, 1))
	require.NoError(t, err)

	assert.Equal(t, 4, r.Orders)
	assert.Equal(t, 115.0, r.Revenue)
	assert.Equal(t, 65.0, r.Cost)
	assert.Equal(t, 50.0, r.Profit)
	assert.Equal(t, 43.48, r.MarginPercent)
	assert.Equal(t, 28.75, r.AverageRevenue)
	assert.Equal(t, 16.25, r.AverageCost)
	assert.Equal(t, 12.5, r.AverageProfit)
	assert.Equal(t, 2, r.UniqueClients)
	assert.Equal(t, []MonthRevenue{{Month: "2026-09", Revenue: 20}, {Month: "2026-10", Revenue: 95}}, r.RevenueByMonth)
	assert.Equal(t, []StatusCount{
		{Status: model.StatusQuote, Label: "Orçamento", Count: 1},
		{Status: model.StatusApproved, Label: "Aprovado", Count: 0},
		{Status: model.StatusProduction, Label: "Em produção", Count: 1},
		{Status: model.StatusCompleted, Label: "Concluído", Count: 2},
	}, r.StatusDistribution)
}

func TestReportOfEmptyPeriod(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	r, err := svc.Report(context.Background(), day(1, 1), day(2, 1))
	require.NoError(t, err)
	assert.Zero(t, r.Orders)
	assert.Zero(t, r.MarginPercent)
	assert.Zero(t, r.AverageRevenue)
	assert.Empty(t, r.RevenueByMonth)
}

func TestExportNeedsProPlan(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanFree)

	var buf bytes.Buffer
	err := svc.Export(context.Background(), store.Query{}, FormatCSV, &buf)
	assert.ErrorIs(t, err, plans.ErrFeatureUnavailable)
	assert.Zero(t, buf.Len())
}

func TestExportCSV(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanPro)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), store.Query{}, FormatCSV, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"Cliente", "Serviço", "Status", "Data Criação", "Data Entrega", "Custo", "Preço", "Lucro", "Margem (%)"}, records[0])
	assert.Equal(t, []string{"Oficina Sul", "'=cmd", "Orçamento", "10/10/2026", "", "15.00", "15.00", "0.00", "0.00"}, records[1])
}

func TestExportXLSXInEnglish(t *testing.T) {
	svc, _, state := newTestService(t, model.PlanPro)
	prefs := state.Preferences()
	prefs.Locale = "en-US"
	state.SetPreferences(prefs)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(context.Background(), store.Query{Status: model.StatusCompleted}, FormatXLSX, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Orders"}, f.GetSheetList())
	header, err := f.GetCellValue("Orders", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Client", header)

	rows, err := f.GetRows("Orders", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Oficina Sul", rows[1][0])
	assert.Equal(t, "Completed", rows[1][2])
	assert.Equal(t, "10/05/2026", rows[1][3])
	assert.Equal(t, "50", rows[1][6])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newTestService(t, model.PlanPro)
	err := svc.Export(context.Background(), store.Query{}, "pdf", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSanitizeCell(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"Banner", "Banner"},
		{"=1+1", "'=1+1"},
		{"+55 11", "'+55 11"},
		{"@user", "'@user"},
	}
	for _, tt := range tests {
		if got := sanitizeCell(tt.in); got != tt.want {
			t.Errorf("sanitizeCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
