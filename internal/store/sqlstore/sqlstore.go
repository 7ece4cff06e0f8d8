// Package sqlstore implements store.Store on a relational database through sqlx.
// The same SQL runs on SQLite and PostgreSQL; bindvars are rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

// Store is the relational store.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open connection pool whose schema is already migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// filter accumulates WHERE conditions and their arguments.
type filter struct {
	conds []string
	args  []any
}

func (f *filter) add(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// search adds a case-insensitive LIKE over the given columns.
func (f *filter) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	pattern := "%" + strings.ToLower(term) + "%"
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		parts = append(parts, "LOWER("+c+") LIKE ?")
		f.args = append(f.args, pattern)
	}
	f.conds = append(f.conds, "("+strings.Join(parts, " OR ")+")")
}

func (f filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// list runs a count query and a paged select sharing the same filter.
func list[T any](ctx context.Context, db *sqlx.DB, columns, table string, f filter, order string, q store.Query) (store.Page[T], error) {
	q = q.Normalize()
	page := store.Page[T]{Items: make([]T, 0), Page: q.Page, Limit: q.Limit}

	countQuery := db.Rebind("SELECT COUNT(*) FROM " + table + f.where())
	if err := db.GetContext(ctx, &page.Total, countQuery, f.args...); err != nil {
		return page, fmt.Errorf("count %s: %w", table, err)
	}

	selectQuery := db.Rebind("SELECT " + columns + " FROM " + table + f.where() + " ORDER BY " + order + " LIMIT ? OFFSET ?")
	args := append(append([]any{}, f.args...), q.Limit, q.Offset())
	if err := db.SelectContext(ctx, &page.Items, selectQuery, args...); err != nil {
		return page, fmt.Errorf("query %s: %w", table, err)
	}

	return page, nil
}

func get[T any](ctx context.Context, db *sqlx.DB, columns, table, id string) (T, error) {
	var out T
	query := db.Rebind("SELECT " + columns + " FROM " + table + " WHERE id = ?")
	if err := db.GetContext(ctx, &out, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, store.ErrNotFound
		}
		return out, fmt.Errorf("query %s: %w", table, err)
	}
	return out, nil
}

func deleteByID(ctx context.Context, db *sqlx.DB, table, id string) error {
	result, err := db.ExecContext(ctx, db.Rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return expectAffected(result, table)
}

func expectAffected(result sql.Result, table string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected %s: %w", table, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// utc normalizes timestamps so that SQLite's text ordering matches time ordering.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

const settingsColumns = `company_name, company_logo_url, locale, currency, tax_percent,
	default_markup_percent, default_unit, theme, plan, updated_at`

// GetSettings returns the settings row or store.ErrNotFound before the first save.
func (s *Store) GetSettings(ctx context.Context) (model.Settings, error) {
	var out model.Settings
	err := s.db.GetContext(ctx, &out, `SELECT `+settingsColumns+` FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return out, store.ErrNotFound
	}
	if err != nil {
		return out, fmt.Errorf("query settings: %w", err)
	}
	return out, nil
}

// SaveSettings upserts the settings singleton.
func (s *Store) SaveSettings(ctx context.Context, settings model.Settings) error {
	settings.UpdatedAt = utc(settings.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO settings (
			id, company_name, company_logo_url, locale, currency, tax_percent,
			default_markup_percent, default_unit, theme, plan, updated_at
		) VALUES (
			1, :company_name, :company_logo_url, :locale, :currency, :tax_percent,
			:default_markup_percent, :default_unit, :theme, :plan, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			company_name = excluded.company_name,
			company_logo_url = excluded.company_logo_url,
			locale = excluded.locale,
			currency = excluded.currency,
			tax_percent = excluded.tax_percent,
			default_markup_percent = excluded.default_markup_percent,
			default_unit = excluded.default_unit,
			theme = excluded.theme,
			plan = excluded.plan,
			updated_at = excluded.updated_at
	`, settings)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// GetUserByEmail looks a user up by e-mail.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	query := s.db.Rebind(`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`)
	err := s.db.GetContext(ctx, &u, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return u, store.ErrNotFound
	}
	if err != nil {
		return u, fmt.Errorf("query user credentials: %w", err)
	}
	return u, nil
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	u.CreatedAt = utc(u.CreatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES (:id, :email, :name, :password_hash, :created_at)
	`, u)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

type auditRow struct {
	ID        string         `db:"id"`
	Entity    string         `db:"entity"`
	EntityID  string         `db:"entity_id"`
	Action    string         `db:"action"`
	Before    sql.NullString `db:"before_json"`
	After     sql.NullString `db:"after_json"`
	UserID    string         `db:"user_id"`
	CreatedAt time.Time      `db:"created_at"`
}

// AppendAudit inserts an audit entry.
func (s *Store) AppendAudit(ctx context.Context, e model.AuditEntry) error {
	row := auditRow{
		ID:        e.ID,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Action:    string(e.Action),
		Before:    sql.NullString{String: string(e.Before), Valid: len(e.Before) > 0},
		After:     sql.NullString{String: string(e.After), Valid: len(e.After) > 0},
		UserID:    e.UserID,
		CreatedAt: utc(e.CreatedAt),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (id, entity, entity_id, action, before_json, after_json, user_id, created_at)
		VALUES (:id, :entity, :entity_id, :action, :before_json, :after_json, :user_id, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit pages the audit log, newest first.
func (s *Store) ListAudit(ctx context.Context, q store.Query) (store.Page[model.AuditEntry], error) {
	var f filter
	f.search(q.Search, "entity", "entity_id", "action")

	rows, err := list[auditRow](ctx, s.db,
		"id, entity, entity_id, action, before_json, after_json, user_id, created_at",
		"audit_log", f, "created_at DESC, id DESC", q)
	out := store.Page[model.AuditEntry]{Items: make([]model.AuditEntry, 0, len(rows.Items)), Total: rows.Total, Page: rows.Page, Limit: rows.Limit}
	if err != nil {
		return out, err
	}

	for _, r := range rows.Items {
		e := model.AuditEntry{
			ID:        r.ID,
			Entity:    r.Entity,
			EntityID:  r.EntityID,
			Action:    model.AuditAction(r.Action),
			UserID:    r.UserID,
			CreatedAt: r.CreatedAt,
		}
		if r.Before.Valid {
			e.Before = []byte(r.Before.String)
		}
		if r.After.Valid {
			e.After = []byte(r.After.String)
		}
		out.Items = append(out.Items, e)
	}
	return out, nil
}
