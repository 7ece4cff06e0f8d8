package sqlstore

import (
	"context"
	"fmt"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

const (
	clientColumns   = "id, name, document, contact, email, phone, address, notes, created_at, updated_at"
	materialColumns = "id, name, unit, cost_per_unit, supplier, stock, created_at, updated_at"
	inkColumns      = "id, name, cost_per_liter, supplier, stock_ml, created_at, updated_at"
)

func (s *Store) ListClients(ctx context.Context, q store.Query) (store.Page[model.Client], error) {
	var f filter
	f.search(q.Search, "name", "document", "email", "contact")
	return list[model.Client](ctx, s.db, clientColumns, "clients", f, "name ASC, id ASC", q)
}

func (s *Store) GetClient(ctx context.Context, id string) (model.Client, error) {
	return get[model.Client](ctx, s.db, clientColumns, "clients", id)
}

func (s *Store) CreateClient(ctx context.Context, c model.Client) error {
	c.CreatedAt, c.UpdatedAt = utc(c.CreatedAt), utc(c.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO clients (id, name, document, contact, email, phone, address, notes, created_at, updated_at)
		VALUES (:id, :name, :document, :contact, :email, :phone, :address, :notes, :created_at, :updated_at)
	`, c)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c model.Client) error {
	c.UpdatedAt = utc(c.UpdatedAt)
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE clients SET
			name = :name, document = :document, contact = :contact, email = :email,
			phone = :phone, address = :address, notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`, c)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return expectAffected(result, "clients")
}

func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "clients", id)
}

func (s *Store) ListMaterials(ctx context.Context, q store.Query) (store.Page[model.Material], error) {
	var f filter
	f.search(q.Search, "name", "supplier")
	return list[model.Material](ctx, s.db, materialColumns, "materials", f, "name ASC, id ASC", q)
}

func (s *Store) GetMaterial(ctx context.Context, id string) (model.Material, error) {
	return get[model.Material](ctx, s.db, materialColumns, "materials", id)
}

func (s *Store) CreateMaterial(ctx context.Context, m model.Material) error {
	m.CreatedAt, m.UpdatedAt = utc(m.CreatedAt), utc(m.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO materials (id, name, unit, cost_per_unit, supplier, stock, created_at, updated_at)
		VALUES (:id, :name, :unit, :cost_per_unit, :supplier, :stock, :created_at, :updated_at)
	`, m)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

func (s *Store) UpdateMaterial(ctx context.Context, m model.Material) error {
	m.UpdatedAt = utc(m.UpdatedAt)
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE materials SET
			name = :name, unit = :unit, cost_per_unit = :cost_per_unit,
			supplier = :supplier, stock = :stock, updated_at = :updated_at
		WHERE id = :id
	`, m)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	return expectAffected(result, "materials")
}

func (s *Store) DeleteMaterial(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "materials", id)
}

func (s *Store) ListInks(ctx context.Context, q store.Query) (store.Page[model.Ink], error) {
	var f filter
	f.search(q.Search, "name", "supplier")
	return list[model.Ink](ctx, s.db, inkColumns, "inks", f, "name ASC, id ASC", q)
}

func (s *Store) GetInk(ctx context.Context, id string) (model.Ink, error) {
	return get[model.Ink](ctx, s.db, inkColumns, "inks", id)
}

func (s *Store) CreateInk(ctx context.Context, i model.Ink) error {
	i.CreatedAt, i.UpdatedAt = utc(i.CreatedAt), utc(i.UpdatedAt)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO inks (id, name, cost_per_liter, supplier, stock_ml, created_at, updated_at)
		VALUES (:id, :name, :cost_per_liter, :supplier, :stock_ml, :created_at, :updated_at)
	`, i)
	if err != nil {
		return fmt.Errorf("insert ink: %w", err)
	}
	return nil
}

func (s *Store) UpdateInk(ctx context.Context, i model.Ink) error {
	i.UpdatedAt = utc(i.UpdatedAt)
	result, err := s.db.NamedExecContext(ctx, `
		UPDATE inks SET
			name = :name, cost_per_liter = :cost_per_liter, supplier = :supplier,
			stock_ml = :stock_ml, updated_at = :updated_at
		WHERE id = :id
	`, i)
	if err != nil {
		return fmt.Errorf("update ink: %w", err)
	}
	return expectAffected(result, "inks")
}

func (s *Store) DeleteInk(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, "inks", id)
}
