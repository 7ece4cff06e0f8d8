// Package model holds the records the shop works with: catalog entries, service
// orders and the bookkeeping around them.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Client is a customer of the shop.
type Client struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name" validate:"required,min=2,max=120"`
	Document  string    `json:"document" db:"document" validate:"max=40"`
	Contact   string    `json:"contact" db:"contact" validate:"max=120"`
	Email     string    `json:"email" db:"email" validate:"omitempty,email"`
	Phone     string    `json:"phone" db:"phone" validate:"max=40"`
	Address   string    `json:"address" db:"address" validate:"max=255"`
	Notes     string    `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Material is a master-data entry for a printable substrate.
type Material struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name" validate:"required,min=2,max=120"`
	Unit        Unit      `json:"unit" db:"unit" validate:"required,unit"`
	CostPerUnit float64   `json:"cost_per_unit" db:"cost_per_unit" validate:"gte=0"`
	Supplier    string    `json:"supplier" db:"supplier" validate:"max=120"`
	Stock       float64   `json:"stock" db:"stock" validate:"gte=0"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Ink is a master-data entry for an ink.
type Ink struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name" validate:"required,min=2,max=120"`
	CostPerLiter float64   `json:"cost_per_liter" db:"cost_per_liter" validate:"gte=0"`
	Supplier     string    `json:"supplier" db:"supplier" validate:"max=120"`
	StockML      float64   `json:"stock_ml" db:"stock_ml" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// User is an account that can sign in to the dashboard.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuditAction names what happened to an audited entity.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditStatus AuditAction = "status"
)

// Audited entity names.
const (
	EntityClient       = "client"
	EntityMaterial     = "material"
	EntityInk          = "ink"
	EntityServiceOrder = "service_order"
	EntitySettings     = "settings"
)

// AuditEntry records a change to an entity with its state before and after.
type AuditEntry struct {
	ID        string          `json:"id" db:"id"`
	Entity    string          `json:"entity" db:"entity"`
	EntityID  string          `json:"entity_id" db:"entity_id"`
	Action    AuditAction     `json:"action" db:"action"`
	Before    json.RawMessage `json:"before,omitempty" db:"before_json"`
	After     json.RawMessage `json:"after,omitempty" db:"after_json"`
	UserID    string          `json:"user_id" db:"user_id"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
