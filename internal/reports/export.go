package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/plans"
	"github.com/Simplici0/signworks/internal/store"
)

// ErrUnknownFormat is returned for export formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("unknown export format")

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type served for an export format.
func ContentType(format string) (string, error) {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8", nil
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var exportHeaders = map[string][]string{
	"pt-BR": {"Cliente", "Serviço", "Status", "Data Criação", "Data Entrega", "Custo", "Preço", "Lucro", "Margem (%)"},
	"en-US": {"Client", "Service", "Status", "Created", "Due", "Cost", "Price", "Profit", "Margin (%)"},
}

var dateLayouts = map[string]string{
	"pt-BR": "02/01/2006",
	"en-US": "01/02/2006",
}

type exportRow struct {
	client, service, status, created, due string
	cost, price, profit, margin           float64
}

func (r exportRow) strings() []string {
	return []string{
		sanitizeCell(r.client), sanitizeCell(r.service), r.status, r.created, r.due,
		money(r.cost), money(r.price), money(r.profit), money(r.margin),
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Export writes the orders matching q as csv or xlsx. It needs the reports
// feature of the pro plan.
func (s *Service) Export(ctx context.Context, q store.Query, format string, w io.Writer) error {
	prefs := s.state.Preferences()
	if err := plans.Require(prefs.Plan, plans.FeatureReports); err != nil {
		return err
	}
	if _, err := ContentType(format); err != nil {
		return err
	}

	orders, err := allOrders(ctx, s.store, q)
	if err != nil {
		return err
	}
	locale := model.NormalizeLocale(prefs.Locale)
	names := newClientNames(s.store, locale)

	rows := make([]exportRow, 0, len(orders))
	for _, o := range orders {
		client, err := names.get(ctx, o.ClientID)
		if err != nil {
			return err
		}
		row := exportRow{
			client:  client,
			service: o.Name,
			status:  o.Status.Label(locale),
			created: o.CreatedAt.Format(dateLayouts[locale]),
			cost:    o.Breakdown.TotalCost,
			price:   o.Breakdown.SalePrice,
			profit:  o.Breakdown.Profit,
			margin:  o.Breakdown.MarginPercent,
		}
		if o.DueDate != nil {
			row.due = o.DueDate.Format(dateLayouts[locale])
		}
		rows = append(rows, row)
	}

	s.log.WithField("format", format).WithField("rows", len(rows)).Info("export orders")
	if format == FormatXLSX {
		return writeXLSX(w, exportHeaders[locale], rows)
	}
	return writeCSV(w, exportHeaders[locale], rows)
}

func writeCSV(w io.Writer, headers []string, rows []exportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.strings()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, headers []string, rows []exportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Orders"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("set sheet name: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheet, "A1", last+"1", headerStyle)
	f.SetColWidth(sheet, "A", "B", 32)
	f.SetColWidth(sheet, "C", last, 14)

	for i, r := range rows {
		n := i + 2
		values := []any{
			sanitizeCell(r.client), sanitizeCell(r.service), r.status, r.created, r.due,
			r.cost, r.price, r.profit, r.margin,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, n)
			f.SetCellValue(sheet, cell, v)
		}
		f.SetCellStyle(sheet, fmt.Sprintf("F%d", n), fmt.Sprintf("%s%d", last, n), moneyStyle)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// sanitizeCell stops spreadsheet apps from evaluating user text as a formula.
func sanitizeCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}
