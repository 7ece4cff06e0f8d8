// Package store defines the persistence contract. Implementations live in
// sqlstore (PostgreSQL or SQLite) and filestore (local JSON files).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Simplici0/signworks/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("record already exists")
)

const (
	DefaultLimit = 10
	MaxLimit     = 500
)

// Query filters and pages list operations. Fields that do not apply to the
// listed entity are ignored.
type Query struct {
	Search   string
	Status   model.Status
	ClientID string
	From     time.Time
	To       time.Time
	Page     int
	Limit    int
}

// Normalize clamps paging to sane values.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// Offset is the number of rows skipped for the current page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of results plus the total number of matches.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Store is everything the application persists.
type Store interface {
	ListClients(ctx context.Context, q Query) (Page[model.Client], error)
	GetClient(ctx context.Context, id string) (model.Client, error)
	CreateClient(ctx context.Context, c model.Client) error
	UpdateClient(ctx context.Context, c model.Client) error
	DeleteClient(ctx context.Context, id string) error

	ListMaterials(ctx context.Context, q Query) (Page[model.Material], error)
	GetMaterial(ctx context.Context, id string) (model.Material, error)
	CreateMaterial(ctx context.Context, m model.Material) error
	UpdateMaterial(ctx context.Context, m model.Material) error
	DeleteMaterial(ctx context.Context, id string) error

	ListInks(ctx context.Context, q Query) (Page[model.Ink], error)
	GetInk(ctx context.Context, id string) (model.Ink, error)
	CreateInk(ctx context.Context, i model.Ink) error
	UpdateInk(ctx context.Context, i model.Ink) error
	DeleteInk(ctx context.Context, id string) error

	// ListOrders returns orders with all their lines loaded, newest first.
	ListOrders(ctx context.Context, q Query) (Page[model.ServiceOrder], error)
	GetOrder(ctx context.Context, id string) (model.ServiceOrder, error)
	// SaveOrder inserts or replaces an order together with all its lines.
	SaveOrder(ctx context.Context, o model.ServiceOrder) error
	DeleteOrder(ctx context.Context, id string) error

	AppendAudit(ctx context.Context, e model.AuditEntry) error
	ListAudit(ctx context.Context, q Query) (Page[model.AuditEntry], error)

	GetSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error

	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) error

	Close() error
}

// Counts is the number of records per entity, used for plan limits.
type Counts struct {
	Clients   int `json:"clients"`
	Materials int `json:"materials"`
	Inks      int `json:"inks"`
	Orders    int `json:"orders"`
}

// CountAll counts every entity with single-row page queries.
func CountAll(ctx context.Context, s Store) (Counts, error) {
	var c Counts
	one := Query{Limit: 1}

	clients, err := s.ListClients(ctx, one)
	if err != nil {
		return c, err
	}
	materials, err := s.ListMaterials(ctx, one)
	if err != nil {
		return c, err
	}
	inks, err := s.ListInks(ctx, one)
	if err != nil {
		return c, err
	}
	orders, err := s.ListOrders(ctx, one)
	if err != nil {
		return c, err
	}

	c.Clients = clients.Total
	c.Materials = materials.Total
	c.Inks = inks.Total
	c.Orders = orders.Total
	return c, nil
}
