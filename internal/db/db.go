package db

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported relational backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know the bindvar style of.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Database is an open connection pool plus the goose dialect that migrates it.
type Database struct {
	*sqlx.DB
	Dialect string
}

// Open opens the configured relational backend and validates connectivity.
func Open(driver, dsn string) (*Database, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database with the recommended pragmas applied to every connection.
func OpenSQLite(dbPath string) (*Database, error) {
	dsn := sqliteDSN(dbPath)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Database{DB: db, Dialect: "sqlite3"}, nil
}

// OpenPostgres opens the hosted PostgreSQL database through pgx's database/sql driver.
func OpenPostgres(url string) (*Database, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("open postgres database: DATABASE_URL is empty")
	}

	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}

	return &Database{DB: db, Dialect: "postgres"}, nil
}

func sqliteDSN(path string) string {
	const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + pragmas
	}
	return "file:" + path + "?" + pragmas
}
