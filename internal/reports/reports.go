// Package reports aggregates stored service orders into the dashboard, the
// period report and its spreadsheet export. Figures always come from the
// breakdown saved with each order.
package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
)

const (
	topN        = 5
	recentCount = 10
	monthLayout = "2006-01"
)

var hundred = decimal.NewFromInt(100)

// Ranked is one entry of a top-N list.
type Ranked struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// OrderSummary is the short form of an order shown in lists.
type OrderSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ClientID    string       `json:"client_id"`
	ClientName  string       `json:"client_name"`
	Status      model.Status `json:"status"`
	StatusLabel string       `json:"status_label"`
	SalePrice   float64      `json:"sale_price"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Dashboard holds the headline figures of the current month plus rankings over all orders.
type Dashboard struct {
	Month         string         `json:"month"`
	Revenue       float64        `json:"revenue"`
	Cost          float64        `json:"cost"`
	Profit        float64        `json:"profit"`
	MarginPercent float64        `json:"margin_percent"`
	InProduction  int            `json:"in_production"`
	PendingQuotes int            `json:"pending_quotes"`
	TopMaterials  []Ranked       `json:"top_materials"`
	TopClients    []Ranked       `json:"top_clients"`
	RecentOrders  []OrderSummary `json:"recent_orders"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// MonthRevenue is the revenue of the orders created in one month.
type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// StatusCount is how many orders of the period are in a status.
type StatusCount struct {
	Status model.Status `json:"status"`
	Label  string       `json:"label"`
	Count  int          `json:"count"`
}

// Report summarizes the orders created in [From, To).
type Report struct {
	From               time.Time      `json:"from"`
	To                 time.Time      `json:"to"`
	Orders             int            `json:"orders"`
	Revenue            float64        `json:"revenue"`
	Cost               float64        `json:"cost"`
	Profit             float64        `json:"profit"`
	MarginPercent      float64        `json:"margin_percent"`
	AverageRevenue     float64        `json:"average_revenue"`
	AverageCost        float64        `json:"average_cost"`
	AverageProfit      float64        `json:"average_profit"`
	UniqueClients      int            `json:"unique_clients"`
	RevenueByMonth     []MonthRevenue `json:"revenue_by_month"`
	TopClients         []Ranked       `json:"top_clients"`
	StatusDistribution []StatusCount  `json:"status_distribution"`
}

type Service struct {
	store store.Store
	cache Cache
	state *appstate.State
	log   logrus.FieldLogger
	now   func() time.Time

	unsubscribe func()
}

// NewService builds the report service. A nil cache disables caching. The
// cached dashboard is dropped whenever orders, catalog or preferences change.
func NewService(s store.Store, cache Cache, state *appstate.State, log logrus.FieldLogger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	svc := &Service{store: s, cache: cache, state: state, log: log, now: time.Now}
	svc.unsubscribe = state.Subscribe(svc.invalidate)
	return svc
}

// Close stops listening for change events.
func (s *Service) Close() {
	s.unsubscribe()
}

func (s *Service) dashboardKey() string {
	return "dashboard:" + s.now().UTC().Format(monthLayout)
}

func (s *Service) invalidate(ev appstate.Event) {
	if err := s.cache.Delete(context.Background(), s.dashboardKey()); err != nil {
		s.log.WithError(err).WithField("topic", ev.Topic).Warn("drop cached dashboard")
	}
}

// Dashboard returns the current month's figures: revenue and cost of completed
// orders created this month, the open pipeline and the all-time rankings.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	key := s.dashboardKey()

	var d Dashboard
	found, err := s.cache.Get(ctx, key, &d)
	if err != nil {
		s.log.WithError(err).Warn("read cached dashboard")
	}
	if found {
		return d, nil
	}

	d, err = s.buildDashboard(ctx)
	if err != nil {
		return d, err
	}
	if err := s.cache.Set(ctx, key, d); err != nil {
		s.log.WithError(err).Warn("cache dashboard")
	}
	return d, nil
}

func (s *Service) buildDashboard(ctx context.Context) (Dashboard, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	d := Dashboard{Month: start.Format(monthLayout), GeneratedAt: now}
	locale := s.state.Preferences().Locale

	completed, err := allOrders(ctx, s.store, store.Query{Status: model.StatusCompleted, From: start, To: start.AddDate(0, 1, 0)})
	if err != nil {
		return d, err
	}
	revenue, cost := decimal.Zero, decimal.Zero
	for _, o := range completed {
		revenue = revenue.Add(decimal.NewFromFloat(o.Breakdown.SalePrice))
		cost = cost.Add(decimal.NewFromFloat(o.Breakdown.TotalCost))
	}
	d.Revenue, d.Cost, d.Profit, d.MarginPercent = totals(revenue, cost)

	if d.InProduction, err = countStatus(ctx, s.store, model.StatusProduction); err != nil {
		return d, err
	}
	if d.PendingQuotes, err = countStatus(ctx, s.store, model.StatusQuote); err != nil {
		return d, err
	}

	orders, err := allOrders(ctx, s.store, store.Query{})
	if err != nil {
		return d, err
	}
	names := newClientNames(s.store, locale)

	materials := newRanking()
	clients := newRanking()
	for _, o := range orders {
		for _, line := range o.Materials {
			if line.MaterialID == "" {
				continue
			}
			materials.add(line.MaterialID, line.MaterialName, pricing.LineCost(line.PricingLine()))
		}
		if o.ClientID != "" {
			name, err := names.get(ctx, o.ClientID)
			if err != nil {
				return d, err
			}
			clients.add(o.ClientID, name, o.Breakdown.SalePrice)
		}
	}
	d.TopMaterials = materials.top(topN)
	d.TopClients = clients.top(topN)

	d.RecentOrders = make([]OrderSummary, 0, recentCount)
	for i, o := range orders {
		if i == recentCount {
			break
		}
		name, err := names.get(ctx, o.ClientID)
		if err != nil {
			return d, err
		}
		d.RecentOrders = append(d.RecentOrders, OrderSummary{
			ID: o.ID, Name: o.Name, ClientID: o.ClientID, ClientName: name,
			Status: o.Status, StatusLabel: o.Status.Label(locale),
			SalePrice: o.Breakdown.SalePrice, CreatedAt: o.CreatedAt,
		})
	}
	return d, nil
}

// Report summarizes every order created in [from, to). A zero bound is open.
func (s *Service) Report(ctx context.Context, from, to time.Time) (Report, error) {
	r := Report{From: from, To: to}
	locale := s.state.Preferences().Locale

	orders, err := allOrders(ctx, s.store, store.Query{From: from, To: to})
	if err != nil {
		return r, err
	}
	names := newClientNames(s.store, locale)

	revenue, cost := decimal.Zero, decimal.Zero
	byMonth := map[string]decimal.Decimal{}
	byStatus := map[model.Status]int{}
	clients := newRanking()
	for _, o := range orders {
		price := decimal.NewFromFloat(o.Breakdown.SalePrice)
		revenue = revenue.Add(price)
		cost = cost.Add(decimal.NewFromFloat(o.Breakdown.TotalCost))

		month := o.CreatedAt.UTC().Format(monthLayout)
		byMonth[month] = byMonth[month].Add(price)
		byStatus[o.Status]++

		name, err := names.get(ctx, o.ClientID)
		if err != nil {
			return r, err
		}
		clients.add(o.ClientID, name, o.Breakdown.SalePrice)
	}

	r.Orders = len(orders)
	r.Revenue, r.Cost, r.Profit, r.MarginPercent = totals(revenue, cost)
	if r.Orders > 0 {
		n := decimal.NewFromInt(int64(r.Orders))
		r.AverageRevenue = revenue.Div(n).Round(2).InexactFloat64()
		r.AverageCost = cost.Div(n).Round(2).InexactFloat64()
		r.AverageProfit = revenue.Sub(cost).Div(n).Round(2).InexactFloat64()
	}
	r.UniqueClients = len(clients.values)
	r.TopClients = clients.top(topN)

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)
	r.RevenueByMonth = make([]MonthRevenue, 0, len(months))
	for _, m := range months {
		r.RevenueByMonth = append(r.RevenueByMonth, MonthRevenue{Month: m, Revenue: byMonth[m].Round(2).InexactFloat64()})
	}

	r.StatusDistribution = make([]StatusCount, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		r.StatusDistribution = append(r.StatusDistribution, StatusCount{Status: st, Label: st.Label(locale), Count: byStatus[st]})
	}
	return r, nil
}

// totals derives profit and margin from summed revenue and cost.
func totals(revenue, cost decimal.Decimal) (rev, c, profit, margin float64) {
	p := revenue.Sub(cost)
	m := decimal.Zero
	if revenue.IsPositive() {
		m = p.Div(revenue).Mul(hundred)
	}
	return revenue.Round(2).InexactFloat64(), cost.Round(2).InexactFloat64(), p.Round(2).InexactFloat64(), m.Round(2).InexactFloat64()
}

// allOrders pages through every order matching q.
func allOrders(ctx context.Context, s store.Store, q store.Query) ([]model.ServiceOrder, error) {
	q.Limit = store.MaxLimit
	q.Page = 1

	var out []model.ServiceOrder
	for {
		page, err := s.ListOrders(ctx, q)
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

func countStatus(ctx context.Context, s store.Store, status model.Status) (int, error) {
	page, err := s.ListOrders(ctx, store.Query{Status: status, Limit: 1})
	return page.Total, err
}

type ranking struct {
	order  []string
	names  map[string]string
	values map[string]decimal.Decimal
}

func newRanking() *ranking {
	return &ranking{names: map[string]string{}, values: map[string]decimal.Decimal{}}
}

func (r *ranking) add(id, name string, value float64) {
	if _, ok := r.values[id]; !ok {
		r.order = append(r.order, id)
		r.names[id] = name
	}
	r.values[id] = r.values[id].Add(decimal.NewFromFloat(value))
}

// top returns the n largest entries. Ties keep first-seen order.
func (r *ranking) top(n int) []Ranked {
	out := make([]Ranked, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, Ranked{ID: id, Name: r.names[id], Value: r.values[id].Round(2).InexactFloat64()})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// clientNames resolves client names once per report.
type clientNames struct {
	store   store.Store
	unknown string
	cache   map[string]string
}

func newClientNames(s store.Store, locale string) *clientNames {
	unknown := "Client not found"
	if model.NormalizeLocale(locale) == "pt-BR" {
		unknown = "Cliente não encontrado"
	}
	return &clientNames{store: s, unknown: unknown, cache: map[string]string{}}
}

func (c *clientNames) get(ctx context.Context, id string) (string, error) {
	if name, ok := c.cache[id]; ok {
		return name, nil
	}
	client, err := c.store.GetClient(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.cache[id] = c.unknown
	case err != nil:
		return "", err
	default:
		c.cache[id] = client.Name
	}
	return c.cache[id], nil
}
