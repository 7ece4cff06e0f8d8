package quotedoc

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/Simplici0/signworks/internal/pricing"
)

var (
	grey     = &props.Color{Red: 100, Green: 100, Blue: 100}
	headerBg = &props.Color{Red: 33, Green: 37, Blue: 41}
	white    = &props.Color{Red: 255, Green: 255, Blue: 255}
	altBg    = &props.Color{Red: 245, Green: 245, Blue: 245}
)

// PDF renders d as an A4 PDF document.
func PDF(d Document) ([]byte, error) {
	l := labelsFor(d.Locale)
	cfg := config.NewBuilder().
		WithOrientation(orientation.Vertical).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: l.Page,
			Place:   props.RightBottom,
			Size:    7,
			Color:   grey,
		}).
		Build()

	m := maroto.New(cfg)
	addHeader(m, d, l)
	addMaterials(m, d, l)
	addInks(m, d, l)
	addSummary(m, d, l)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate quote pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func addHeader(m core.Maroto, d Document, l labels) {
	o := d.Order
	label := props.Text{Size: 7, Style: fontstyle.Bold, Align: align.Left, Color: grey}
	value := props.Text{Size: 9, Align: align.Left}

	m.AddRows(
		row.New(10).Add(
			col.New(8).Add(text.New(d.Company.CompanyName, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Left})),
			col.New(4).Add(text.New(l.Title, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Right})),
		),
		row.New(6).Add(
			col.New(8).Add(text.New(o.Name, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Left})),
			col.New(4).Add(text.New(d.IssuedAt.Format(l.DateLayout), props.Text{Size: 9, Align: align.Right})),
		),
		row.New(3),
		row.New(5).Add(
			col.New(6).Add(text.New(l.Client, label)),
			col.New(3).Add(text.New(l.Status, label)),
			col.New(3).Add(text.New(l.Due, label)),
		),
	)

	due := "-"
	if o.DueDate != nil {
		due = o.DueDate.Format(l.DateLayout)
	}
	m.AddRows(row.New(6).Add(
		col.New(6).Add(text.New(d.Client.Name, value)),
		col.New(3).Add(text.New(o.Status.Label(d.Locale), value)),
		col.New(3).Add(text.New(due, value)),
	))
	if contact := joinNonEmpty(d.Client.Email, d.Client.Phone); contact != "" {
		m.AddRows(row.New(5).Add(col.New(12).Add(text.New(contact, props.Text{Size: 8, Color: grey}))))
	}
	if o.Description != "" {
		m.AddRows(row.New(8).Add(col.New(12).Add(text.New(o.Description, props.Text{Size: 8}))))
	}
	m.AddRows(row.New(4))
}

// columnWidths spreads a table over the 12-column grid.
func columnWidths(n int) []int {
	if n == 2 {
		return []int{8, 4}
	}
	return []int{5, 3, 2, 2}
}

func tableHeader(m core.Maroto, titles ...string) {
	style := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Center, Color: white}
	cell := &props.Cell{BackgroundColor: headerBg}
	widths := columnWidths(len(titles))

	cols := make([]core.Col, 0, len(titles))
	for i, t := range titles {
		cols = append(cols, col.New(widths[i]).Add(text.New(t, style)).WithStyle(cell))
	}
	m.AddRows(row.New(7).Add(cols...))
}

func tableRow(m core.Maroto, i int, values ...string) {
	style := props.Text{Size: 8, Align: align.Center, Top: 1}
	left := style
	left.Align = align.Left
	widths := columnWidths(len(values))

	var cell *props.Cell
	if i%2 == 1 {
		cell = &props.Cell{BackgroundColor: altBg}
	}

	cols := make([]core.Col, 0, len(values))
	for j, v := range values {
		s := style
		if j == 0 {
			s = left
		}
		c := col.New(widths[j]).Add(text.New(v, s))
		if cell != nil {
			c = c.WithStyle(cell)
		}
		cols = append(cols, c)
	}
	m.AddRows(row.New(6).Add(cols...))
}

func addMaterials(m core.Maroto, d Document, l labels) {
	if len(d.Order.Materials) == 0 {
		return
	}
	m.AddRows(row.New(7).Add(col.New(12).Add(text.New(l.Materials, props.Text{Size: 10, Style: fontstyle.Bold}))))
	if !d.internal() {
		tableHeader(m, l.Materials, l.Quantity)
		for i, line := range d.Order.Materials {
			tableRow(m, i, line.MaterialName, materialQuantity(line))
		}
		m.AddRows(row.New(4))
		return
	}
	tableHeader(m, l.Materials, l.Quantity, l.UnitCost, l.Total)
	for i, line := range d.Order.Materials {
		pl := line.PricingLine()
		tableRow(m, i, line.MaterialName, materialQuantity(line), d.money(pl.CostPerUnit), d.money(pricing.LineCost(pl)))
	}
	m.AddRows(row.New(4))
}

func addInks(m core.Maroto, d Document, l labels) {
	if !d.internal() || len(d.Order.Inks) == 0 {
		return
	}
	m.AddRows(row.New(7).Add(col.New(12).Add(text.New(l.Inks, props.Text{Size: 10, Style: fontstyle.Bold}))))
	tableHeader(m, l.Inks, l.Quantity, l.UnitCost, l.Total)
	for i, line := range d.Order.Inks {
		perLiter := deref(line.CostPerLiterSnapshot)
		tableRow(m, i, line.InkName, number(line.Milliliters)+" ml", d.money(perLiter)+"/L", d.money(perLiter*line.Milliliters/1000))
	}
	m.AddRows(row.New(4))
}

func addSummary(m core.Maroto, d Document, l labels) {
	label := props.Text{Size: 9, Align: align.Right}
	value := props.Text{Size: 9, Align: align.Right}

	m.AddRows(row.New(7).Add(col.New(12).Add(text.New(l.Summary, props.Text{Size: 10, Style: fontstyle.Bold}))))
	for _, s := range d.summary(l) {
		lbl, val := label, value
		if s.label == l.Price {
			lbl.Style, val.Style = fontstyle.Bold, fontstyle.Bold
			lbl.Size, val.Size = 11, 11
		}
		m.AddRows(row.New(6).Add(
			col.New(8).Add(text.New(s.label, lbl)),
			col.New(4).Add(text.New(s.value, val)),
		))
	}
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " | "
		}
		out += p
	}
	return out
}
