package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// Unit is the unit of measure a material is consumed in.
type Unit string

const (
	// LinearMeter materials are priced by length.
	LinearMeter Unit = "m"
	// SquareMeter materials are priced by area (width x height x count).
	SquareMeter Unit = "m2"
)

// MaterialLine is the pricing view of a material usage line. CostPerUnit is the
// snapshot taken when the line was added to the order.
type MaterialLine struct {
	Unit         Unit
	LengthMeters float64
	Width        float64
	Height       float64
	Count        float64
	CostPerUnit  float64
}

// InkLine is the pricing view of an ink usage line.
type InkLine struct {
	Milliliters  float64
	CostPerLiter float64
}

// Input represents everything the engine needs to price a service order.
type Input struct {
	Materials     []MaterialLine
	Inks          []InkLine
	LaborHours    float64
	LaborRate     float64
	Extras        []float64
	Discounts     []float64
	MarkupPercent *float64
	ManualPrice   *float64
}

// Breakdown contains the cost and price figures of an order, rounded to two decimals.
type Breakdown struct {
	MaterialCost   float64 `json:"material_cost"`
	InkCost        float64 `json:"ink_cost"`
	LaborCost      float64 `json:"labor_cost"`
	ExtrasTotal    float64 `json:"extras_total"`
	DiscountsTotal float64 `json:"discounts_total"`
	TotalCost      float64 `json:"total_cost"`
	SalePrice      float64 `json:"sale_price"`
	Profit         float64 `json:"profit"`
	MarginPercent  float64 `json:"margin_percent"`
}

// NegativeCost reports whether discounts pushed the total cost below zero.
func (b Breakdown) NegativeCost() bool {
	return b.TotalCost < 0
}

const decimals = 2

var (
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// Compute prices an order. It never fails: non-finite numbers are treated as zero,
// a non-finite count as one and a non-finite markup or manual price as absent.
func Compute(in Input) Breakdown {
	materialCost := decimal.Zero
	for _, line := range in.Materials {
		materialCost = materialCost.Add(materialLineCost(line))
	}

	inkCost := decimal.Zero
	for _, line := range in.Inks {
		liters := num(line.Milliliters).Div(thousand)
		inkCost = inkCost.Add(num(line.CostPerLiter).Mul(liters))
	}

	laborCost := num(in.LaborHours).Mul(num(in.LaborRate))
	extrasTotal := sum(in.Extras)
	discountsTotal := sum(in.Discounts)

	totalCost := materialCost.Add(inkCost).Add(laborCost).Add(extrasTotal).Sub(discountsTotal)

	// Only the returned figures are rounded; markup and profit use the exact total.
	salePrice := totalCost
	if manual, ok := optional(in.ManualPrice); ok {
		salePrice = manual
	} else if markup, ok := optional(in.MarkupPercent); ok {
		salePrice = totalCost.Mul(decimal.NewFromInt(1).Add(markup.Div(hundred)))
	}

	profit := salePrice.Sub(totalCost)
	margin := decimal.Zero
	if salePrice.IsPositive() {
		margin = profit.Div(salePrice).Mul(hundred)
	}

	return Breakdown{
		MaterialCost:   round(materialCost),
		InkCost:        round(inkCost),
		LaborCost:      round(laborCost),
		ExtrasTotal:    round(extrasTotal),
		DiscountsTotal: round(discountsTotal),
		TotalCost:      round(totalCost),
		SalePrice:      round(salePrice),
		Profit:         round(profit),
		MarginPercent:  round(margin),
	}
}

// ComputeCostBreakdown is the positional form of Compute.
func ComputeCostBreakdown(
	materials []MaterialLine,
	inks []InkLine,
	laborHours, laborRate float64,
	extras, discounts []float64,
	markupPercent, manualPrice *float64,
) Breakdown {
	return Compute(Input{
		Materials:     materials,
		Inks:          inks,
		LaborHours:    laborHours,
		LaborRate:     laborRate,
		Extras:        extras,
		Discounts:     discounts,
		MarkupPercent: markupPercent,
		ManualPrice:   manualPrice,
	})
}

// Quantity resolves how many units of a material a line consumes.
func Quantity(line MaterialLine) float64 {
	return quantity(line).InexactFloat64()
}

// LineCost is the snapshot cost of a single material line, unrounded.
func LineCost(line MaterialLine) float64 {
	return materialLineCost(line).InexactFloat64()
}

func materialLineCost(line MaterialLine) decimal.Decimal {
	return num(line.CostPerUnit).Mul(quantity(line))
}

func quantity(line MaterialLine) decimal.Decimal {
	switch line.Unit {
	case LinearMeter:
		return num(line.LengthMeters)
	case SquareMeter:
		count := decimal.NewFromInt(1)
		if finite(line.Count) {
			count = decimal.NewFromFloat(line.Count)
		}
		return num(line.Width).Mul(num(line.Height)).Mul(count)
	default:
		return decimal.Zero
	}
}

func sum(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(num(v))
	}
	return total
}

func optional(v *float64) (decimal.Decimal, bool) {
	if v == nil || !finite(*v) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*v), true
}

func num(v float64) decimal.Decimal {
	if !finite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round(d decimal.Decimal) float64 {
	f, _ := d.Round(decimals).Float64()
	return f
}
