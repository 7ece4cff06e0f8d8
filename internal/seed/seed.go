package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/pricing"
	"github.com/Simplici0/signworks/internal/store"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	// Catalog adds the default materials and inks.
	Catalog bool
	// SampleData adds demo clients and one demo order. It implies Catalog.
	SampleData bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

var defaultMaterials = []model.Material{
	{Name: "Vinil Adesivo", Unit: pricing.SquareMeter, CostPerUnit: 15.50, Supplier: "Fornecedor A", Stock: 100},
	{Name: "Lona Vinílica", Unit: pricing.SquareMeter, CostPerUnit: 8.90, Supplier: "Fornecedor B", Stock: 50},
	{Name: "Papel Fotográfico", Unit: pricing.SquareMeter, CostPerUnit: 25.00, Supplier: "Fornecedor A", Stock: 30},
	{Name: "Adesivo Transparente", Unit: pricing.SquareMeter, CostPerUnit: 18.75, Supplier: "Fornecedor C", Stock: 75},
	{Name: "Tecido Sublimação", Unit: pricing.LinearMeter, CostPerUnit: 12.30, Supplier: "Fornecedor B", Stock: 200},
}

var defaultInks = []model.Ink{
	{Name: "Tinta Eco-Solvente Cyan", CostPerLiter: 45, Supplier: "Fornecedor A", StockML: 2000},
	{Name: "Tinta Eco-Solvente Magenta", CostPerLiter: 45, Supplier: "Fornecedor A", StockML: 1800},
	{Name: "Tinta Eco-Solvente Yellow", CostPerLiter: 45, Supplier: "Fornecedor A", StockML: 1500},
	{Name: "Tinta Eco-Solvente Black", CostPerLiter: 42, Supplier: "Fornecedor A", StockML: 2200},
}

var sampleClients = []model.Client{
	{Name: "Empresa ABC Ltda", Document: "12.345.678/0001-90", Email: "contato@abc.com", Phone: "(11) 99999-9999", Address: "Rua das Flores, 123 - São Paulo, SP"},
	{Name: "João Silva", Document: "123.456.789-00", Email: "joao@email.com", Phone: "(11) 88888-8888", Address: "Av. Principal, 456 - São Paulo, SP"},
	{Name: "Maria Santos", Document: "987.654.321-00", Email: "maria@email.com", Phone: "(11) 77777-7777", Address: "Rua Comercial, 789 - São Paulo, SP"},
	{Name: "Comércio XYZ", Document: "98.765.432/0001-10", Email: "contato@xyz.com", Phone: "(11) 66666-6666", Address: "Av. Central, 321 - São Paulo, SP"},
	{Name: "Pedro Costa", Document: "456.789.123-00", Email: "pedro@email.com", Phone: "(11) 55555-5555", Address: "Rua Nova, 654 - São Paulo, SP"},
}

// Run executes the startup seed in an idempotent way. Records are matched by
// name (or e-mail for the admin), so running it again inserts nothing.
func Run(ctx context.Context, s store.Store, cfg Config) (Stats, error) {
	stats := Stats{}
	now := time.Now().UTC()

	if err := seedAdmin(ctx, s, cfg.AdminEmail, cfg.AdminPassword, now, &stats); err != nil {
		return Stats{}, err
	}
	if err := ensureSettings(ctx, s, now, &stats); err != nil {
		return Stats{}, err
	}

	if !cfg.Catalog && !cfg.SampleData {
		return stats, nil
	}

	materials := make(map[string]model.Material, len(defaultMaterials))
	for _, m := range defaultMaterials {
		saved, err := ensureMaterial(ctx, s, m, now, &stats)
		if err != nil {
			return Stats{}, err
		}
		materials[saved.Name] = saved
	}
	inks := make(map[string]model.Ink, len(defaultInks))
	for _, i := range defaultInks {
		saved, err := ensureInk(ctx, s, i, now, &stats)
		if err != nil {
			return Stats{}, err
		}
		inks[saved.Name] = saved
	}

	if !cfg.SampleData {
		return stats, nil
	}

	var first model.Client
	for i, c := range sampleClients {
		saved, err := ensureClient(ctx, s, c, now, &stats)
		if err != nil {
			return Stats{}, err
		}
		if i == 0 {
			first = saved
		}
	}
	if err := ensureSampleOrder(ctx, s, first, materials["Lona Vinílica"], inks["Tinta Eco-Solvente Cyan"], now, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func seedAdmin(ctx context.Context, s store.Store, email, password string, now time.Time, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check admin user existence: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	if err := s.CreateUser(ctx, model.User{ID: model.NewID(), Email: email, Name: "Admin", PasswordHash: hash, CreatedAt: now}); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

// HashPassword returns the bcrypt hash stored for a user's password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("generate bcrypt hash: %w", err)
	}
	return string(hash), nil
}

func ensureSettings(ctx context.Context, s store.Store, now time.Time, stats *Stats) error {
	_, err := s.GetSettings(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check settings existence: %w", err)
	}

	settings := model.DefaultSettings()
	settings.UpdatedAt = now
	if err := s.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("insert settings singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

// findByName searches list for a record whose name equals name, ignoring case.
func findByName[T any](ctx context.Context, list func(context.Context, store.Query) (store.Page[T], error), name string, nameOf func(T) string) (T, bool, error) {
	var zero T
	page, err := list(ctx, store.Query{Search: name, Limit: store.MaxLimit})
	if err != nil {
		return zero, false, err
	}
	for _, item := range page.Items {
		if strings.EqualFold(nameOf(item), name) {
			return item, true, nil
		}
	}
	return zero, false, nil
}

func ensureMaterial(ctx context.Context, s store.Store, m model.Material, now time.Time, stats *Stats) (model.Material, error) {
	existing, found, err := findByName(ctx, s.ListMaterials, m.Name, func(m model.Material) string { return m.Name })
	if err != nil {
		return m, fmt.Errorf("check material %q existence: %w", m.Name, err)
	}
	if found {
		return existing, nil
	}

	m.ID, m.CreatedAt, m.UpdatedAt = model.NewID(), now, now
	if err := s.CreateMaterial(ctx, m); err != nil {
		return m, fmt.Errorf("insert material %q: %w", m.Name, err)
	}
	stats.Inserts++
	return m, nil
}

func ensureInk(ctx context.Context, s store.Store, i model.Ink, now time.Time, stats *Stats) (model.Ink, error) {
	existing, found, err := findByName(ctx, s.ListInks, i.Name, func(i model.Ink) string { return i.Name })
	if err != nil {
		return i, fmt.Errorf("check ink %q existence: %w", i.Name, err)
	}
	if found {
		return existing, nil
	}

	i.ID, i.CreatedAt, i.UpdatedAt = model.NewID(), now, now
	if err := s.CreateInk(ctx, i); err != nil {
		return i, fmt.Errorf("insert ink %q: %w", i.Name, err)
	}
	stats.Inserts++
	return i, nil
}

func ensureClient(ctx context.Context, s store.Store, c model.Client, now time.Time, stats *Stats) (model.Client, error) {
	existing, found, err := findByName(ctx, s.ListClients, c.Name, func(c model.Client) string { return c.Name })
	if err != nil {
		return c, fmt.Errorf("check client %q existence: %w", c.Name, err)
	}
	if found {
		return existing, nil
	}

	c.ID, c.CreatedAt, c.UpdatedAt = model.NewID(), now, now
	if err := s.CreateClient(ctx, c); err != nil {
		return c, fmt.Errorf("insert client %q: %w", c.Name, err)
	}
	stats.Inserts++
	return c, nil
}

func ensureSampleOrder(ctx context.Context, s store.Store, client model.Client, lona model.Material, cyan model.Ink, now time.Time, stats *Stats) error {
	const name = "Banner Promocional"
	page, err := s.ListOrders(ctx, store.Query{Search: name, Limit: 1})
	if err != nil {
		return fmt.Errorf("check sample order existence: %w", err)
	}
	if page.Total > 0 {
		return nil
	}

	width, height, count := 3.0, 2.0, 1.0
	hours, rate, markup := 2.0, 25.0, 30.0
	due := now.AddDate(0, 0, 7)
	o := model.ServiceOrder{
		ClientID:    client.ID,
		Name:        name,
		Description: "Banner para promoção de verão",
		Status:      model.StatusProduction,
		DueDate:     &due,
		Materials: []model.MaterialUsageLine{{
			MaterialID: lona.ID, MaterialName: lona.Name, Unit: lona.Unit,
			Width: &width, Height: &height, Count: &count, CostPerUnitSnapshot: &lona.CostPerUnit,
		}},
		Inks: []model.InkUsageLine{{
			InkID: cyan.ID, InkName: cyan.Name, Milliliters: 150, CostPerLiterSnapshot: &cyan.CostPerLiter,
		}},
		LaborHours:    &hours,
		LaborRate:     &rate,
		MarkupPercent: &markup,
		Extras:        []model.AdjustmentLine{},
		Discounts:     []model.AdjustmentLine{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	o.EnsureIDs()
	o.Recalculate()

	if err := s.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("insert sample order: %w", err)
	}
	stats.Inserts++
	return nil
}
