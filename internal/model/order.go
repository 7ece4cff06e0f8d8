package model

import (
	"math"
	"strings"
	"time"

	"github.com/Simplici0/signworks/internal/pricing"
)

// Unit is the unit of measure a material is sold in.
type Unit = pricing.Unit

// ParseUnit accepts the stored short forms and their long aliases.
func ParseUnit(raw string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "linear-meter":
		return pricing.LinearMeter, true
	case "m2", "square-meter":
		return pricing.SquareMeter, true
	default:
		return "", false
	}
}

// Status is the lifecycle stage of a service order.
type Status string

const (
	StatusQuote      Status = "quote"
	StatusApproved   Status = "approved"
	StatusProduction Status = "production"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusQuote, StatusApproved, StatusProduction, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// MaterialUsageLine is a material consumed by an order. CostPerUnitSnapshot is
// copied from the material when the line is added and never refreshed.
type MaterialUsageLine struct {
	ID                  string   `json:"id" db:"id"`
	MaterialID          string   `json:"material_id" db:"material_id" validate:"required"`
	MaterialName        string   `json:"material_name" db:"material_name"`
	Unit                Unit     `json:"unit" db:"unit" validate:"omitempty,unit"`
	LengthMeters        *float64 `json:"length_meters,omitempty" db:"length_meters" validate:"omitempty,gte=0"`
	Width               *float64 `json:"width,omitempty" db:"width" validate:"omitempty,gte=0"`
	Height              *float64 `json:"height,omitempty" db:"height" validate:"omitempty,gte=0"`
	Count               *float64 `json:"count,omitempty" db:"item_count" validate:"omitempty,gte=0"`
	CostPerUnitSnapshot *float64 `json:"cost_per_unit_snapshot,omitempty" db:"cost_per_unit_snapshot" validate:"omitempty,gte=0"`
}

// InkUsageLine is an ink consumed by an order.
type InkUsageLine struct {
	ID                   string   `json:"id" db:"id"`
	InkID                string   `json:"ink_id" db:"ink_id" validate:"required"`
	InkName              string   `json:"ink_name" db:"ink_name"`
	Milliliters          float64  `json:"milliliters" db:"milliliters" validate:"gte=0"`
	CostPerLiterSnapshot *float64 `json:"cost_per_liter_snapshot,omitempty" db:"cost_per_liter_snapshot" validate:"omitempty,gte=0"`
}

// AdjustmentLine is an extra charge or a discount.
type AdjustmentLine struct {
	ID          string  `json:"id" db:"id"`
	Description string  `json:"description" db:"description" validate:"max=255"`
	Value       float64 `json:"value" db:"value"`
}

// Payment is money received for an order.
type Payment struct {
	ID     string    `json:"id" db:"id"`
	PaidAt time.Time `json:"paid_at" db:"paid_at"`
	Amount float64   `json:"amount" db:"amount" validate:"gt=0"`
	Method string    `json:"method" db:"method" validate:"required,max=40"`
	Notes  string    `json:"notes" db:"notes"`
}

// Comment is a note left on an order.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	Author    string    `json:"author" db:"author"`
	Text      string    `json:"text" db:"text" validate:"required,max=2000"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Attachment is a file stored alongside an order.
type Attachment struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	ObjectKey   string    `json:"object_key" db:"object_key"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ServiceOrder is a customer job. Breakdown is computed when the order is saved
// and stored with it; reads never recompute it.
type ServiceOrder struct {
	ID            string              `json:"id"`
	ClientID      string              `json:"client_id" validate:"required"`
	Name          string              `json:"name" validate:"required,min=1,max=160"`
	Description   string              `json:"description"`
	Status        Status              `json:"status" validate:"required,status"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	Materials     []MaterialUsageLine `json:"materials" validate:"dive"`
	Inks          []InkUsageLine      `json:"inks" validate:"dive"`
	LaborHours    *float64            `json:"labor_hours,omitempty" validate:"omitempty,gte=0"`
	LaborRate     *float64            `json:"labor_rate,omitempty" validate:"omitempty,gte=0"`
	Extras        []AdjustmentLine    `json:"extras" validate:"dive"`
	Discounts     []AdjustmentLine    `json:"discounts" validate:"dive"`
	MarkupPercent *float64            `json:"markup_percent,omitempty" validate:"omitempty,gte=0"`
	ManualPrice   *float64            `json:"manual_price,omitempty" validate:"omitempty,gte=0"`
	Breakdown     pricing.Breakdown   `json:"breakdown"`
	Payments      []Payment           `json:"payments"`
	Comments      []Comment           `json:"comments"`
	Attachments   []Attachment        `json:"attachments"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// PricingInput resolves the order's optional fields into the engine's input.
// This is the only place those defaults are decided.
func (o ServiceOrder) PricingInput() pricing.Input {
	in := pricing.Input{
		Materials:     make([]pricing.MaterialLine, 0, len(o.Materials)),
		Inks:          make([]pricing.InkLine, 0, len(o.Inks)),
		LaborHours:    value(o.LaborHours, 0),
		LaborRate:     value(o.LaborRate, 0),
		Extras:        adjustmentValues(o.Extras),
		Discounts:     adjustmentValues(o.Discounts),
		MarkupPercent: o.MarkupPercent,
		ManualPrice:   o.ManualPrice,
	}
	for _, line := range o.Materials {
		in.Materials = append(in.Materials, line.PricingLine())
	}
	for _, line := range o.Inks {
		in.Inks = append(in.Inks, pricing.InkLine{
			Milliliters:  line.Milliliters,
			CostPerLiter: value(line.CostPerLiterSnapshot, 0),
		})
	}
	return in
}

// PricingLine resolves a material line's optional dimensions.
func (l MaterialUsageLine) PricingLine() pricing.MaterialLine {
	return pricing.MaterialLine{
		Unit:         l.Unit,
		LengthMeters: value(l.LengthMeters, 0),
		Width:        value(l.Width, 0),
		Height:       value(l.Height, 0),
		Count:        value(l.Count, 1),
		CostPerUnit:  value(l.CostPerUnitSnapshot, 0),
	}
}

// Recalculate recomputes the stored breakdown from the order's lines.
func (o *ServiceOrder) Recalculate() {
	o.Breakdown = pricing.Compute(o.PricingInput())
}

// PaidTotal sums the payments received for the order.
func (o ServiceOrder) PaidTotal() float64 {
	var total float64
	for _, p := range o.Payments {
		total += p.Amount
	}
	return total
}

// EnsureIDs assigns identifiers to the order and every nested line that lacks one.
func (o *ServiceOrder) EnsureIDs() {
	if o.ID == "" {
		o.ID = NewID()
	}
	for i := range o.Materials {
		if o.Materials[i].ID == "" {
			o.Materials[i].ID = NewID()
		}
	}
	for i := range o.Inks {
		if o.Inks[i].ID == "" {
			o.Inks[i].ID = NewID()
		}
	}
	for i := range o.Extras {
		if o.Extras[i].ID == "" {
			o.Extras[i].ID = NewID()
		}
	}
	for i := range o.Discounts {
		if o.Discounts[i].ID == "" {
			o.Discounts[i].ID = NewID()
		}
	}
	for i := range o.Payments {
		if o.Payments[i].ID == "" {
			o.Payments[i].ID = NewID()
		}
	}
	for i := range o.Comments {
		if o.Comments[i].ID == "" {
			o.Comments[i].ID = NewID()
		}
	}
}

func adjustmentValues(lines []AdjustmentLine) []float64 {
	values := make([]float64, 0, len(lines))
	for _, l := range lines {
		values = append(values, l.Value)
	}
	return values
}

// value dereferences an optional number, falling back to def when it is missing or not finite.
func value(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return def
	}
	return *v
}

var statusLabels = map[Status][2]string{
	StatusQuote:      {"Orçamento", "Quote"},
	StatusApproved:   {"Aprovado", "Approved"},
	StatusProduction: {"Em produção", "In Production"},
	StatusCompleted:  {"Concluído", "Completed"},
}

// Label is the display name of the status in the given locale.
func (s Status) Label(locale string) string {
	labels, ok := statusLabels[s]
	if !ok {
		return string(s)
	}
	if NormalizeLocale(locale) == "pt-BR" {
		return labels[0]
	}
	return labels[1]
}
