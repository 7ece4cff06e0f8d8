// Package app opens the configured backends and builds the services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/appstate"
	"github.com/Simplici0/signworks/internal/attachments"
	"github.com/Simplici0/signworks/internal/audit"
	"github.com/Simplici0/signworks/internal/backup"
	"github.com/Simplici0/signworks/internal/catalog"
	"github.com/Simplici0/signworks/internal/config"
	"github.com/Simplici0/signworks/internal/db"
	"github.com/Simplici0/signworks/internal/events"
	"github.com/Simplici0/signworks/internal/metrics"
	"github.com/Simplici0/signworks/internal/migrations"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/orders"
	"github.com/Simplici0/signworks/internal/quotedoc"
	"github.com/Simplici0/signworks/internal/reports"
	"github.com/Simplici0/signworks/internal/settings"
	"github.com/Simplici0/signworks/internal/store"
	"github.com/Simplici0/signworks/internal/store/filestore"
	"github.com/Simplici0/signworks/internal/store/sqlstore"
	"github.com/Simplici0/signworks/internal/validation"
)

// DriverFile keeps everything in a JSON document on local disk.
const DriverFile = "file"

// OpenDatabase opens the relational backend named by cfg.DBDriver.
func OpenDatabase(cfg config.Config) (*db.Database, error) {
	if cfg.DBDriver == DriverFile {
		return nil, fmt.Errorf("driver %q has no database", cfg.DBDriver)
	}
	dsn := cfg.DBPath
	if cfg.DBDriver == db.DriverPostgres {
		dsn = cfg.DatabaseURL
	}
	return db.Open(cfg.DBDriver, dsn)
}

// Migrate runs the SQL migrations for a relational backend. The file store needs none.
func Migrate(cfg config.Config) error {
	if cfg.DBDriver == DriverFile {
		return nil
	}
	database, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return migrations.Up(database.DB.DB, database.Dialect)
}

// OpenStore opens the configured store, migrating relational backends first when migrate is set.
func OpenStore(cfg config.Config, migrate bool) (store.Store, error) {
	if cfg.DBDriver == DriverFile {
		return filestore.Open(cfg.FileStoreDir)
	}

	database, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := migrations.Up(database.DB.DB, database.Dialect); err != nil {
			database.Close()
			return nil, err
		}
	}
	return sqlstore.New(database.DB), nil
}

// App holds every service of a running instance.
type App struct {
	Config  config.Config
	Log     logrus.FieldLogger
	Store   store.Store
	State   *appstate.State
	Metrics *metrics.ServerMetrics

	Catalog  *catalog.Service
	Orders   *orders.Service
	Settings *settings.Service
	Reports  *reports.Service
	Quotes   *quotedoc.Service
	Backup   *backup.Service

	closers []func() error
}

// New builds the services over s. Redis, Kafka and MinIO are used when configured.
func New(ctx context.Context, cfg config.Config, s store.Store, log logrus.FieldLogger) (*App, error) {
	v, err := validation.New()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Store:   s,
		State:   appstate.New(appstate.FromSettings(model.DefaultSettings())),
		Metrics: metrics.NewServerMetrics("server"),
	}

	publisher := events.NewClient(cfg.Kafka.Brokers).NewPublisher(cfg.Kafka.AuditTopic)
	a.closers = append(a.closers, publisher.Close)
	if len(cfg.Kafka.Brokers) > 0 {
		log.WithField("topic", cfg.Kafka.AuditTopic).Info("publishing audit events to kafka")
	}
	recorder := audit.NewRecorder(s, publisher, log)

	a.Settings = settings.NewService(s, v, recorder, a.State, log)
	if _, err := a.Settings.Load(ctx); err != nil {
		return nil, err
	}

	var cache reports.Cache = reports.NoopCache{}
	if cfg.Redis.Addr != "" {
		redisCache, err := reports.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, reports.DefaultCacheTTL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, dashboard will not be cached")
		} else {
			cache = redisCache
			a.closers = append(a.closers, redisCache.Close)
		}
	}

	orderOpts := []orders.Option{orders.WithObserver(a.Metrics)}
	if cfg.MinIO.Endpoint != "" {
		files, err := attachments.NewMinIOStorage(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL, log)
		if err != nil {
			return nil, err
		}
		orderOpts = append(orderOpts, orders.WithAttachments(files))
	}

	a.Catalog = catalog.NewService(s, v, recorder, a.State, log)
	a.Orders = orders.NewService(s, v, recorder, a.State, log, orderOpts...)
	a.Reports = reports.NewService(s, cache, a.State, log)
	a.Quotes = quotedoc.NewService(s, a.State, log)
	a.Backup = backup.NewService(s, a.State, log)
	return a, nil
}

// Close releases the store and every optional client.
func (a *App) Close() error {
	a.Reports.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
