package seed

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/signworks/internal/db"
	"github.com/Simplici0/signworks/internal/migrations"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/store/sqlstore"
)

func openSQLStore(t *testing.T) store.Store {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "seed-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	if err := migrations.Up(database.DB.DB, database.Dialect); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	s := sqlstore.New(database.DB)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openSQLStore(t)
	ctx := context.Background()
	cfg := Config{
		AdminEmail:    "admin@signworks.local",
		AdminPassword: "12345",
		Catalog:       true,
	}

	for i := 0; i < 10; i++ {
		stats, err := Run(ctx, s, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 {
			if stats.Inserts != 11 {
				t.Fatalf("expected 11 inserts in first run, got %d", stats.Inserts)
			}
			continue
		}
		if stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	counts, err := store.CountAll(ctx, s)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if counts.Materials != 5 || counts.Inks != 4 || counts.Clients != 0 || counts.Orders != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if settings.Currency != "BRL" || settings.DefaultMarkupPercent != 40 {
		t.Fatalf("unexpected default settings: %+v", settings)
	}

	user, err := s.GetUserByEmail(ctx, "admin@signworks.local")
	if err != nil {
		t.Fatalf("query admin user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("12345")); err != nil {
		t.Fatalf("expected admin hash to match password: %v", err)
	}
}

func TestRunWithoutCatalogOnlySeedsAdminAndSettings(t *testing.T) {
	t.Parallel()

	s, err := filestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}

	stats, err := Run(context.Background(), s, Config{AdminEmail: "admin@signworks.local", AdminPassword: "secret"})
	if err != nil {
		t.Fatalf("run seed: %v", err)
	}
	if stats.Inserts != 2 {
		t.Fatalf("expected 2 inserts, got %d", stats.Inserts)
	}
}

func TestRunWithSampleData(t *testing.T) {
	t.Parallel()

	s, err := filestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	ctx := context.Background()
	cfg := Config{SampleData: true}

	for i := 0; i < 3; i++ {
		stats, err := Run(ctx, s, cfg)
		if err != nil {
			t.Fatalf("run seed (iteration=%d): %v", i, err)
		}
		if i == 0 && stats.Inserts != 16 {
			t.Fatalf("expected 16 inserts in first run, got %d", stats.Inserts)
		}
		if i > 0 && stats.Inserts != 0 {
			t.Fatalf("expected 0 inserts in iteration %d, got %d", i, stats.Inserts)
		}
	}

	orders, err := s.ListOrders(ctx, store.Query{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if orders.Total != 1 {
		t.Fatalf("expected 1 sample order, got %d", orders.Total)
	}

	b := orders.Items[0].Breakdown
	if b.TotalCost != 110.15 || b.SalePrice != 143.2 || b.Profit != 33.05 {
		t.Fatalf("unexpected sample breakdown: %+v", b)
	}

	if _, err := s.GetUserByEmail(ctx, "admin@signworks.local"); err == nil {
		t.Fatalf("expected no admin user without credentials")
	}
}
