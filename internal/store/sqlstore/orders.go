package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
)

const orderColumns = `id, client_id, name, description, status, due_date,
	labor_hours, labor_rate, markup_percent, manual_price,
	material_cost, ink_cost, labor_cost, extras_total, discounts_total,
	total_cost, sale_price, profit, margin_percent, created_at, updated_at`

type orderRow struct {
	ID             string     `db:"id"`
	ClientID       string     `db:"client_id"`
	Name           string     `db:"name"`
	Description    string     `db:"description"`
	Status         string     `db:"status"`
	DueDate        *time.Time `db:"due_date"`
	LaborHours     *float64   `db:"labor_hours"`
	LaborRate      *float64   `db:"labor_rate"`
	MarkupPercent  *float64   `db:"markup_percent"`
	ManualPrice    *float64   `db:"manual_price"`
	MaterialCost   float64    `db:"material_cost"`
	InkCost        float64    `db:"ink_cost"`
	LaborCost      float64    `db:"labor_cost"`
	ExtrasTotal    float64    `db:"extras_total"`
	DiscountsTotal float64    `db:"discounts_total"`
	TotalCost      float64    `db:"total_cost"`
	SalePrice      float64    `db:"sale_price"`
	Profit         float64    `db:"profit"`
	MarginPercent  float64    `db:"margin_percent"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func toOrderRow(o model.ServiceOrder) orderRow {
	row := orderRow{
		ID:             o.ID,
		ClientID:       o.ClientID,
		Name:           o.Name,
		Description:    o.Description,
		Status:         string(o.Status),
		LaborHours:     o.LaborHours,
		LaborRate:      o.LaborRate,
		MarkupPercent:  o.MarkupPercent,
		ManualPrice:    o.ManualPrice,
		MaterialCost:   o.Breakdown.MaterialCost,
		InkCost:        o.Breakdown.InkCost,
		LaborCost:      o.Breakdown.LaborCost,
		ExtrasTotal:    o.Breakdown.ExtrasTotal,
		DiscountsTotal: o.Breakdown.DiscountsTotal,
		TotalCost:      o.Breakdown.TotalCost,
		SalePrice:      o.Breakdown.SalePrice,
		Profit:         o.Breakdown.Profit,
		MarginPercent:  o.Breakdown.MarginPercent,
		CreatedAt:      utc(o.CreatedAt),
		UpdatedAt:      utc(o.UpdatedAt),
	}
	if o.DueDate != nil {
		due := utc(*o.DueDate)
		row.DueDate = &due
	}
	return row
}

func (r orderRow) order() model.ServiceOrder {
	return model.ServiceOrder{
		ID:            r.ID,
		ClientID:      r.ClientID,
		Name:          r.Name,
		Description:   r.Description,
		Status:        model.Status(r.Status),
		DueDate:       r.DueDate,
		LaborHours:    r.LaborHours,
		LaborRate:     r.LaborRate,
		MarkupPercent: r.MarkupPercent,
		ManualPrice:   r.ManualPrice,
		Breakdown: pricing.Breakdown{
			MaterialCost:   r.MaterialCost,
			InkCost:        r.InkCost,
			LaborCost:      r.LaborCost,
			ExtrasTotal:    r.ExtrasTotal,
			DiscountsTotal: r.DiscountsTotal,
			TotalCost:      r.TotalCost,
			SalePrice:      r.SalePrice,
			Profit:         r.Profit,
			MarginPercent:  r.MarginPercent,
		},
		Materials:   []model.MaterialUsageLine{},
		Inks:        []model.InkUsageLine{},
		Extras:      []model.AdjustmentLine{},
		Discounts:   []model.AdjustmentLine{},
		Payments:    []model.Payment{},
		Comments:    []model.Comment{},
		Attachments: []model.Attachment{},
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type materialRow struct {
	OrderID  string `db:"order_id"`
	Position int    `db:"position"`
	model.MaterialUsageLine
}

type inkRow struct {
	OrderID  string `db:"order_id"`
	Position int    `db:"position"`
	model.InkUsageLine
}

const (
	kindExtra    = "extra"
	kindDiscount = "discount"
)

type adjustmentRow struct {
	OrderID  string `db:"order_id"`
	Position int    `db:"position"`
	Kind     string `db:"kind"`
	model.AdjustmentLine
}

type paymentRow struct {
	OrderID string `db:"order_id"`
	model.Payment
}

type commentRow struct {
	OrderID string `db:"order_id"`
	model.Comment
}

type attachmentRow struct {
	OrderID string `db:"order_id"`
	model.Attachment
}

// ListOrders filters by search term, status, client and creation period. From is
// inclusive and To is exclusive.
func (s *Store) ListOrders(ctx context.Context, q store.Query) (store.Page[model.ServiceOrder], error) {
	var f filter
	f.search(q.Search, "name", "description")
	if q.Status != "" {
		f.add("status = ?", string(q.Status))
	}
	if q.ClientID != "" {
		f.add("client_id = ?", q.ClientID)
	}
	if !q.From.IsZero() {
		f.add("created_at >= ?", utc(q.From))
	}
	if !q.To.IsZero() {
		f.add("created_at < ?", utc(q.To))
	}

	rows, err := list[orderRow](ctx, s.db, orderColumns, "service_orders", f, "created_at DESC, id DESC", q)
	out := store.Page[model.ServiceOrder]{Items: make([]model.ServiceOrder, 0, len(rows.Items)), Total: rows.Total, Page: rows.Page, Limit: rows.Limit}
	if err != nil {
		return out, err
	}

	for _, r := range rows.Items {
		out.Items = append(out.Items, r.order())
	}
	if err := s.loadLines(ctx, out.Items); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (model.ServiceOrder, error) {
	row, err := get[orderRow](ctx, s.db, orderColumns, "service_orders", id)
	if err != nil {
		return model.ServiceOrder{}, err
	}
	orders := []model.ServiceOrder{row.order()}
	if err := s.loadLines(ctx, orders); err != nil {
		return model.ServiceOrder{}, err
	}
	return orders[0], nil
}

// loadLines fills the nested lines of every order with one query per child table.
func (s *Store) loadLines(ctx context.Context, orders []model.ServiceOrder) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*model.ServiceOrder, len(orders))
	for i := range orders {
		ids = append(ids, orders[i].ID)
		byID[orders[i].ID] = &orders[i]
	}

	var materials []materialRow
	if err := s.selectIn(ctx, &materials, `
		SELECT order_id, position, id, material_id, material_name, unit,
			length_meters, width, height, item_count, cost_per_unit_snapshot
		FROM order_materials WHERE order_id IN (?) ORDER BY order_id, position`, ids); err != nil {
		return fmt.Errorf("query order materials: %w", err)
	}
	for _, r := range materials {
		o := byID[r.OrderID]
		o.Materials = append(o.Materials, r.MaterialUsageLine)
	}

	var inks []inkRow
	if err := s.selectIn(ctx, &inks, `
		SELECT order_id, position, id, ink_id, ink_name, milliliters, cost_per_liter_snapshot
		FROM order_inks WHERE order_id IN (?) ORDER BY order_id, position`, ids); err != nil {
		return fmt.Errorf("query order inks: %w", err)
	}
	for _, r := range inks {
		o := byID[r.OrderID]
		o.Inks = append(o.Inks, r.InkUsageLine)
	}

	var adjustments []adjustmentRow
	if err := s.selectIn(ctx, &adjustments, `
		SELECT order_id, position, kind, id, description, value
		FROM order_adjustments WHERE order_id IN (?) ORDER BY order_id, kind, position`, ids); err != nil {
		return fmt.Errorf("query order adjustments: %w", err)
	}
	for _, r := range adjustments {
		o := byID[r.OrderID]
		if r.Kind == kindDiscount {
			o.Discounts = append(o.Discounts, r.AdjustmentLine)
		} else {
			o.Extras = append(o.Extras, r.AdjustmentLine)
		}
	}

	var payments []paymentRow
	if err := s.selectIn(ctx, &payments, `
		SELECT order_id, id, paid_at, amount, method, notes
		FROM order_payments WHERE order_id IN (?) ORDER BY order_id, paid_at, id`, ids); err != nil {
		return fmt.Errorf("query order payments: %w", err)
	}
	for _, r := range payments {
		o := byID[r.OrderID]
		o.Payments = append(o.Payments, r.Payment)
	}

	var comments []commentRow
	if err := s.selectIn(ctx, &comments, `
		SELECT order_id, id, author, text, created_at
		FROM order_comments WHERE order_id IN (?) ORDER BY order_id, created_at, id`, ids); err != nil {
		return fmt.Errorf("query order comments: %w", err)
	}
	for _, r := range comments {
		o := byID[r.OrderID]
		o.Comments = append(o.Comments, r.Comment)
	}

	var attachments []attachmentRow
	if err := s.selectIn(ctx, &attachments, `
		SELECT order_id, id, name, object_key, content_type, size, created_at
		FROM order_attachments WHERE order_id IN (?) ORDER BY order_id, created_at, id`, ids); err != nil {
		return fmt.Errorf("query order attachments: %w", err)
	}
	for _, r := range attachments {
		o := byID[r.OrderID]
		o.Attachments = append(o.Attachments, r.Attachment)
	}

	return nil
}

func (s *Store) selectIn(ctx context.Context, dest any, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...)
}

// SaveOrder upserts the order row and replaces every child line in one transaction.
func (s *Store) SaveOrder(ctx context.Context, o model.ServiceOrder) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save order: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO service_orders (
			id, client_id, name, description, status, due_date,
			labor_hours, labor_rate, markup_percent, manual_price,
			material_cost, ink_cost, labor_cost, extras_total, discounts_total,
			total_cost, sale_price, profit, margin_percent, created_at, updated_at
		) VALUES (
			:id, :client_id, :name, :description, :status, :due_date,
			:labor_hours, :labor_rate, :markup_percent, :manual_price,
			:material_cost, :ink_cost, :labor_cost, :extras_total, :discounts_total,
			:total_cost, :sale_price, :profit, :margin_percent, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			due_date = excluded.due_date,
			labor_hours = excluded.labor_hours,
			labor_rate = excluded.labor_rate,
			markup_percent = excluded.markup_percent,
			manual_price = excluded.manual_price,
			material_cost = excluded.material_cost,
			ink_cost = excluded.ink_cost,
			labor_cost = excluded.labor_cost,
			extras_total = excluded.extras_total,
			discounts_total = excluded.discounts_total,
			total_cost = excluded.total_cost,
			sale_price = excluded.sale_price,
			profit = excluded.profit,
			margin_percent = excluded.margin_percent,
			updated_at = excluded.updated_at
	`, toOrderRow(o)); err != nil {
		return fmt.Errorf("upsert service order: %w", err)
	}

	for _, table := range []string{"order_materials", "order_inks", "order_adjustments", "order_payments", "order_comments", "order_attachments"} {
		if _, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM "+table+" WHERE order_id = ?"), o.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err = insertLines(ctx, tx, o); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save order: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, tx *sqlx.Tx, o model.ServiceOrder) error {
	for i, line := range o.Materials {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_materials (
				id, order_id, position, material_id, material_name, unit,
				length_meters, width, height, item_count, cost_per_unit_snapshot
			) VALUES (
				:id, :order_id, :position, :material_id, :material_name, :unit,
				:length_meters, :width, :height, :item_count, :cost_per_unit_snapshot
			)`, materialRow{OrderID: o.ID, Position: i, MaterialUsageLine: line}); err != nil {
			return fmt.Errorf("insert order material: %w", err)
		}
	}

	for i, line := range o.Inks {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_inks (id, order_id, position, ink_id, ink_name, milliliters, cost_per_liter_snapshot)
			VALUES (:id, :order_id, :position, :ink_id, :ink_name, :milliliters, :cost_per_liter_snapshot)`,
			inkRow{OrderID: o.ID, Position: i, InkUsageLine: line}); err != nil {
			return fmt.Errorf("insert order ink: %w", err)
		}
	}

	adjustments := make([]adjustmentRow, 0, len(o.Extras)+len(o.Discounts))
	for i, line := range o.Extras {
		adjustments = append(adjustments, adjustmentRow{OrderID: o.ID, Position: i, Kind: kindExtra, AdjustmentLine: line})
	}
	for i, line := range o.Discounts {
		adjustments = append(adjustments, adjustmentRow{OrderID: o.ID, Position: i, Kind: kindDiscount, AdjustmentLine: line})
	}
	for _, row := range adjustments {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_adjustments (id, order_id, position, kind, description, value)
			VALUES (:id, :order_id, :position, :kind, :description, :value)`, row); err != nil {
			return fmt.Errorf("insert order adjustment: %w", err)
		}
	}

	for _, p := range o.Payments {
		p.PaidAt = utc(p.PaidAt)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_payments (id, order_id, paid_at, amount, method, notes)
			VALUES (:id, :order_id, :paid_at, :amount, :method, :notes)`,
			paymentRow{OrderID: o.ID, Payment: p}); err != nil {
			return fmt.Errorf("insert order payment: %w", err)
		}
	}

	for _, c := range o.Comments {
		c.CreatedAt = utc(c.CreatedAt)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_comments (id, order_id, author, text, created_at)
			VALUES (:id, :order_id, :author, :text, :created_at)`,
			commentRow{OrderID: o.ID, Comment: c}); err != nil {
			return fmt.Errorf("insert order comment: %w", err)
		}
	}

	for _, a := range o.Attachments {
		a.CreatedAt = utc(a.CreatedAt)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO order_attachments (id, order_id, name, object_key, content_type, size, created_at)
			VALUES (:id, :order_id, :name, :object_key, :content_type, :size, :created_at)`,
			attachmentRow{OrderID: o.ID, Attachment: a}); err != nil {
			return fmt.Errorf("insert order attachment: %w", err)
		}
	}

	return nil
}

// DeleteOrder removes an order; child lines go with it through ON DELETE CASCADE.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "service_orders", id)
}
