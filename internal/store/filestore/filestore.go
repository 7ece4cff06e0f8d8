// Package filestore implements store.Store on a single JSON document on local
// disk. It backs offline installs where no database server is available.
package filestore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

const fileName = "signworks.json"

type document struct {
	Settings  *model.Settings      `json:"settings,omitempty"`
	Users     []model.User         `json:"users"`
	Clients   []model.Client       `json:"clients"`
	Materials []model.Material     `json:"materials"`
	Inks      []model.Ink          `json:"inks"`
	Orders    []model.ServiceOrder `json:"orders"`
	Audit     []model.AuditEntry   `json:"audit"`
}

// Users carry their hash in the file even though the API never exposes it.
type storedUser struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

// Store keeps the whole document in memory and rewrites the file after every change.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document
}

var _ store.Store = (*Store)(nil)

// Open loads dir/signworks.json, creating the directory when needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file store directory: %w", err)
	}

	s := &Store{path: filepath.Join(dir, fileName)}
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file store: %w", err)
	}

	var disk struct {
		document
		Users []storedUser `json:"users"`
	}
	if err := json.Unmarshal(raw, &disk); err != nil {
		return nil, fmt.Errorf("decode file store: %w", err)
	}
	s.doc = disk.document
	s.doc.Users = make([]model.User, 0, len(disk.Users))
	for _, u := range disk.Users {
		u.User.PasswordHash = u.PasswordHash
		s.doc.Users = append(s.doc.Users, u.User)
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

func (d document) clone() document {
	d.Users = slices.Clone(d.Users)
	d.Clients = slices.Clone(d.Clients)
	d.Materials = slices.Clone(d.Materials)
	d.Inks = slices.Clone(d.Inks)
	d.Orders = slices.Clone(d.Orders)
	d.Audit = slices.Clone(d.Audit)
	return d
}

// update runs fn on a copy of the document. The copy replaces the in-memory
// document only after it has been written to disk.
func (s *Store) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// flush writes doc to a temp file and renames it into place. Callers hold mu.
func (s *Store) flush(doc document) error {
	disk := struct {
		document
		Users []storedUser `json:"users"`
	}{document: doc}
	for _, u := range doc.Users {
		disk.Users = append(disk.Users, storedUser{User: u, PasswordHash: u.PasswordHash})
	}

	raw, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return fmt.Errorf("encode file store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write file store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace file store: %w", err)
	}
	return nil
}

func matches(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, q store.Query) store.Page[T] {
	q = q.Normalize()
	page := store.Page[T]{Items: []T{}, Total: len(items), Page: q.Page, Limit: q.Limit}
	start := q.Offset()
	if start >= len(items) {
		return page
	}
	end := min(start+q.Limit, len(items))
	page.Items = append(page.Items, items[start:end]...)
	return page
}

func indexOf[T any](items []T, id string, idOf func(T) string) int {
	return slices.IndexFunc(items, func(item T) bool { return idOf(item) == id })
}

func getByID[T any](items []T, id string, idOf func(T) string) (T, error) {
	if i := indexOf(items, id, idOf); i >= 0 {
		return items[i], nil
	}
	var zero T
	return zero, store.ErrNotFound
}

func byName[T any](nameOf func(T) string, idOf func(T) string) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Or(cmp.Compare(nameOf(a), nameOf(b)), cmp.Compare(idOf(a), idOf(b)))
	}
}

func clientID(c model.Client) string     { return c.ID }
func materialID(m model.Material) string { return m.ID }
func inkID(i model.Ink) string           { return i.ID }
func orderID(o model.ServiceOrder) string {
	return o.ID
}

func (s *Store) ListClients(_ context.Context, q store.Query) (store.Page[model.Client], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Client
	for _, c := range s.doc.Clients {
		if matches(q.Search, c.Name, c.Document, c.Email, c.Contact) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, byName(func(c model.Client) string { return c.Name }, clientID))
	return paginate(out, q), nil
}

func (s *Store) GetClient(_ context.Context, id string) (model.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getByID(s.doc.Clients, id, clientID)
}

func (s *Store) CreateClient(_ context.Context, c model.Client) error {
	return s.update(func(doc *document) error {
		if indexOf(doc.Clients, c.ID, clientID) >= 0 {
			return store.ErrConflict
		}
		doc.Clients = append(doc.Clients, c)
		return nil
	})
}

func (s *Store) UpdateClient(_ context.Context, c model.Client) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Clients, c.ID, clientID)
		if i < 0 {
			return store.ErrNotFound
		}
		c.CreatedAt = doc.Clients[i].CreatedAt
		doc.Clients[i] = c
		return nil
	})
}

func (s *Store) DeleteClient(_ context.Context, id string) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Clients, id, clientID)
		if i < 0 {
			return store.ErrNotFound
		}
		doc.Clients = slices.Delete(doc.Clients, i, i+1)
		return nil
	})
}

func (s *Store) ListMaterials(_ context.Context, q store.Query) (store.Page[model.Material], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Material
	for _, m := range s.doc.Materials {
		if matches(q.Search, m.Name, m.Supplier) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, byName(func(m model.Material) string { return m.Name }, materialID))
	return paginate(out, q), nil
}

func (s *Store) GetMaterial(_ context.Context, id string) (model.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getByID(s.doc.Materials, id, materialID)
}

func (s *Store) CreateMaterial(_ context.Context, m model.Material) error {
	return s.update(func(doc *document) error {
		if indexOf(doc.Materials, m.ID, materialID) >= 0 {
			return store.ErrConflict
		}
		doc.Materials = append(doc.Materials, m)
		return nil
	})
}

func (s *Store) UpdateMaterial(_ context.Context, m model.Material) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Materials, m.ID, materialID)
		if i < 0 {
			return store.ErrNotFound
		}
		m.CreatedAt = doc.Materials[i].CreatedAt
		doc.Materials[i] = m
		return nil
	})
}

func (s *Store) DeleteMaterial(_ context.Context, id string) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Materials, id, materialID)
		if i < 0 {
			return store.ErrNotFound
		}
		doc.Materials = slices.Delete(doc.Materials, i, i+1)
		return nil
	})
}

func (s *Store) ListInks(_ context.Context, q store.Query) (store.Page[model.Ink], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Ink
	for _, ink := range s.doc.Inks {
		if matches(q.Search, ink.Name, ink.Supplier) {
			out = append(out, ink)
		}
	}
	slices.SortFunc(out, byName(func(i model.Ink) string { return i.Name }, inkID))
	return paginate(out, q), nil
}

func (s *Store) GetInk(_ context.Context, id string) (model.Ink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getByID(s.doc.Inks, id, inkID)
}

func (s *Store) CreateInk(_ context.Context, ink model.Ink) error {
	return s.update(func(doc *document) error {
		if indexOf(doc.Inks, ink.ID, inkID) >= 0 {
			return store.ErrConflict
		}
		doc.Inks = append(doc.Inks, ink)
		return nil
	})
}

func (s *Store) UpdateInk(_ context.Context, ink model.Ink) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Inks, ink.ID, inkID)
		if i < 0 {
			return store.ErrNotFound
		}
		ink.CreatedAt = doc.Inks[i].CreatedAt
		doc.Inks[i] = ink
		return nil
	})
}

func (s *Store) DeleteInk(_ context.Context, id string) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Inks, id, inkID)
		if i < 0 {
			return store.ErrNotFound
		}
		doc.Inks = slices.Delete(doc.Inks, i, i+1)
		return nil
	})
}

// ListOrders applies the same filters as the SQL store: From inclusive, To exclusive.
func (s *Store) ListOrders(_ context.Context, q store.Query) (store.Page[model.ServiceOrder], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ServiceOrder
	for _, o := range s.doc.Orders {
		switch {
		case !matches(q.Search, o.Name, o.Description):
		case q.Status != "" && o.Status != q.Status:
		case q.ClientID != "" && o.ClientID != q.ClientID:
		case !q.From.IsZero() && o.CreatedAt.Before(q.From):
		case !q.To.IsZero() && !o.CreatedAt.Before(q.To):
		default:
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b model.ServiceOrder) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return paginate(out, q), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (model.ServiceOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := getByID(s.doc.Orders, id, orderID)
	return cloneOrder(o), err
}

// cloneOrder copies the line slices so that callers never alias the in-memory document.
func cloneOrder(o model.ServiceOrder) model.ServiceOrder {
	o.Materials = slices.Clone(o.Materials)
	o.Inks = slices.Clone(o.Inks)
	o.Extras = slices.Clone(o.Extras)
	o.Discounts = slices.Clone(o.Discounts)
	o.Payments = slices.Clone(o.Payments)
	o.Comments = slices.Clone(o.Comments)
	o.Attachments = slices.Clone(o.Attachments)
	return o
}

func (s *Store) SaveOrder(_ context.Context, o model.ServiceOrder) error {
	o = cloneOrder(o)
	return s.update(func(doc *document) error {
		if i := indexOf(doc.Orders, o.ID, orderID); i >= 0 {
			o.CreatedAt = doc.Orders[i].CreatedAt
			doc.Orders[i] = o
		} else {
			doc.Orders = append(doc.Orders, o)
		}
		return nil
	})
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	return s.update(func(doc *document) error {
		i := indexOf(doc.Orders, id, orderID)
		if i < 0 {
			return store.ErrNotFound
		}
		doc.Orders = slices.Delete(doc.Orders, i, i+1)
		return nil
	})
}

func (s *Store) AppendAudit(_ context.Context, e model.AuditEntry) error {
	return s.update(func(doc *document) error {
		doc.Audit = append(doc.Audit, e)
		return nil
	})
}

func (s *Store) ListAudit(_ context.Context, q store.Query) (store.Page[model.AuditEntry], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuditEntry
	for _, e := range s.doc.Audit {
		if matches(q.Search, e.Entity, e.EntityID, string(e.Action)) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.AuditEntry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, q), nil
}

func (s *Store) GetSettings(_ context.Context) (model.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc.Settings == nil {
		return model.Settings{}, store.ErrNotFound
	}
	return *s.doc.Settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings model.Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now()
	}
	return s.update(func(doc *document) error {
		doc.Settings = &settings
		return nil
	})
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.doc.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u model.User) error {
	return s.update(func(doc *document) error {
		for _, existing := range doc.Users {
			if strings.EqualFold(existing.Email, u.Email) {
				return store.ErrConflict
			}
		}
		doc.Users = append(doc.Users, u)
		return nil
	})
}
