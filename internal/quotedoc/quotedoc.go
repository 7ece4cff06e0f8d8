// Package quotedoc renders a saved service order as a customer quote, either
// as plain text or as a PDF. Amounts come from the order's stored breakdown.
package quotedoc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/money"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
)

// View selects who a quote is printed for.
type View string

const (
	// ClientView shows the price, what was paid and the balance.
	ClientView View = "client"
	// InternalView adds unit costs, the cost breakdown, profit and margin.
	InternalView View = "internal"
)

// ParseView maps a query value to a View. Anything unknown is the client copy.
func ParseView(s string) View {
	if View(strings.ToLower(strings.TrimSpace(s))) == InternalView {
		return InternalView
	}
	return ClientView
}

// Document is everything a quote shows.
type Document struct {
	Company  model.Settings
	Client   model.Client
	Order    model.ServiceOrder
	Locale   string
	Currency string
	IssuedAt time.Time
	View     View
}

func (d Document) internal() bool { return d.View == InternalView }

type Service struct {
	store store.Store
	state *appstate.State
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(s store.Store, state *appstate.State, log logrus.FieldLogger) *Service {
	return &Service{store: s, state: state, log: log, now: time.Now}
}

// Load gathers the order, its client and the company settings. A deleted
// client leaves the client block empty.
func (s *Service) Load(ctx context.Context, orderID string) (Document, error) {
	prefs := s.state.Preferences()
	d := Document{Locale: prefs.Locale, Currency: prefs.Currency, IssuedAt: s.now()}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return d, err
	}
	d.Order = order

	client, err := s.store.GetClient(ctx, order.ClientID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return d, err
	}
	d.Client = client

	settings, err := s.store.GetSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		settings, err = model.DefaultSettings(), nil
	}
	if err != nil {
		return d, err
	}
	d.Company = settings
	return d, nil
}

// Text renders the quote for orderID as plain text.
func (s *Service) Text(ctx context.Context, orderID string, view View) (string, error) {
	d, err := s.Load(ctx, orderID)
	if err != nil {
		return "", err
	}
	d.View = view
	return Text(d), nil
}

// PDF renders the quote for orderID as a PDF. It needs the basic PDF feature.
func (s *Service) PDF(ctx context.Context, orderID string, view View) ([]byte, error) {
	if err := plans.Require(s.state.Preferences().Plan, plans.FeatureBasicPDF); err != nil {
		return nil, err
	}
	d, err := s.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	d.View = view
	out, err := PDF(d)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "view": view, "bytes": len(out)}).Debug("quote pdf rendered")
	return out, nil
}

type labels struct {
	Title, Client, Status, Date, Due, Description     string
	Materials, Inks, Labor, Extras, Discounts         string
	MaterialCost, InkCost, LaborCost, ExtrasTotal     string
	DiscountsTotal, TotalCost, Price, Profit, Margin  string
	Paid, Balance, Summary, Quantity, UnitCost, Total string
	Page, DateLayout                                  string
}

var localized = map[string]labels{
	"pt-BR": {
		Title: "Orçamento", Client: "Cliente", Status: "Status", Date: "Data", Due: "Entrega", Description: "Descrição",
		Materials: "Materiais", Inks: "Tintas", Labor: "Mão de obra", Extras: "Extras", Discounts: "Descontos",
		MaterialCost: "Custo de materiais", InkCost: "Custo de tintas", LaborCost: "Custo de mão de obra",
		ExtrasTotal: "Total de extras", DiscountsTotal: "Total de descontos", TotalCost: "Custo total",
		Price: "Preço", Profit: "Lucro", Margin: "Margem", Paid: "Pago", Balance: "Saldo", Summary: "Resumo",
		Quantity: "Qtd.", UnitCost: "Custo unit.", Total: "Total", Page: "Página {current} de {total}",
		DateLayout: "02/01/2006",
	},
	"en-US": {
		Title: "Quote", Client: "Client", Status: "Status", Date: "Date", Due: "Due", Description: "Description",
		Materials: "Materials", Inks: "Inks", Labor: "Labor", Extras: "Extras", Discounts: "Discounts",
		MaterialCost: "Material cost", InkCost: "Ink cost", LaborCost: "Labor cost",
		ExtrasTotal: "Extras total", DiscountsTotal: "Discounts total", TotalCost: "Total cost",
		Price: "Price", Profit: "Profit", Margin: "Margin", Paid: "Paid", Balance: "Balance", Summary: "Summary",
		Quantity: "Qty", UnitCost: "Unit cost", Total: "Total", Page: "Page {current} of {total}",
		DateLayout: "01/02/2006",
	},
}

func labelsFor(locale string) labels {
	return localized[model.NormalizeLocale(locale)]
}

func (d Document) money(v float64) string {
	return money.Format(v, d.Currency, d.Locale)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// materialQuantity describes how much of a material a line uses, e.g. "3 x 2 x 1 = 6 m2".
func materialQuantity(line model.MaterialUsageLine) string {
	pl := line.PricingLine()
	qty := pricing.Quantity(pl)
	if pl.Unit == pricing.SquareMeter {
		return fmt.Sprintf("%s x %s x %s = %s m2", number(pl.Width), number(pl.Height), number(pl.Count), number(qty))
	}
	return fmt.Sprintf("%s %s", number(qty), pl.Unit)
}

type summaryLine struct {
	label string
	value string
}

func (d Document) summary(l labels) []summaryLine {
	b := d.Order.Breakdown
	paid := d.Order.PaidTotal()
	price := []summaryLine{
		{l.Price, d.money(b.SalePrice)},
		{l.Paid, d.money(paid)},
		{l.Balance, d.money(b.SalePrice - paid)},
	}
	if !d.internal() {
		return price
	}
	return append([]summaryLine{
		{l.MaterialCost, d.money(b.MaterialCost)},
		{l.InkCost, d.money(b.InkCost)},
		{l.LaborCost, d.money(b.LaborCost)},
		{l.ExtrasTotal, d.money(b.ExtrasTotal)},
		{l.DiscountsTotal, d.money(b.DiscountsTotal)},
		{l.TotalCost, d.money(b.TotalCost)},
		{l.Profit, d.money(b.Profit)},
		{l.Margin, money.Percent(b.MarginPercent, d.Locale)},
	}, price...)
}

// Text renders d as plain text. The client copy lists what is delivered
// without any cost figures.
func Text(d Document) string {
	l := labelsFor(d.Locale)
	o := d.Order

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", d.Company.CompanyName)
	fmt.Fprintf(&sb, "%s: %s\n", l.Title, o.Name)
	fmt.Fprintf(&sb, "%s: %s\n", l.Client, d.Client.Name)
	fmt.Fprintf(&sb, "%s: %s\n", l.Status, o.Status.Label(d.Locale))
	fmt.Fprintf(&sb, "%s: %s\n", l.Date, d.IssuedAt.Format(l.DateLayout))
	if o.DueDate != nil {
		fmt.Fprintf(&sb, "%s: %s\n", l.Due, o.DueDate.Format(l.DateLayout))
	}
	if o.Description != "" {
		fmt.Fprintf(&sb, "%s: %s\n", l.Description, o.Description)
	}

	if len(o.Materials) > 0 {
		fmt.Fprintf(&sb, "\n%s:\n", l.Materials)
		for _, line := range o.Materials {
			if d.internal() {
				fmt.Fprintf(&sb, "- %s: %s x %s\n", line.MaterialName, materialQuantity(line), d.money(deref(line.CostPerUnitSnapshot)))
			} else {
				fmt.Fprintf(&sb, "- %s: %s\n", line.MaterialName, materialQuantity(line))
			}
		}
	}
	if d.internal() {
		if len(o.Inks) > 0 {
			fmt.Fprintf(&sb, "\n%s:\n", l.Inks)
			for _, line := range o.Inks {
				fmt.Fprintf(&sb, "- %s: %s ml x %s/L\n", line.InkName, number(line.Milliliters), d.money(deref(line.CostPerLiterSnapshot)))
			}
		}
		if o.LaborHours != nil && *o.LaborHours > 0 {
			fmt.Fprintf(&sb, "\n%s: %s h x %s\n", l.Labor, number(*o.LaborHours), d.money(deref(o.LaborRate)))
		}
	}
	writeAdjustments(&sb, l.Extras, o.Extras, d)
	if d.internal() {
		writeAdjustments(&sb, l.Discounts, o.Discounts, d)
	}

	fmt.Fprintf(&sb, "\n%s:\n", l.Summary)
	for _, s := range d.summary(l) {
		fmt.Fprintf(&sb, "%s: %s\n", s.label, s.value)
	}
	return sb.String()
}

func writeAdjustments(sb *strings.Builder, title string, lines []model.AdjustmentLine, d Document) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, line := range lines {
		if d.internal() {
			fmt.Fprintf(sb, "- %s: %s\n", line.Description, d.money(line.Value))
		} else {
			fmt.Fprintf(sb, "- %s\n", line.Description)
		}
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
