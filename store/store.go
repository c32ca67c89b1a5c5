// Package store implements the GORM-backed metadata store: the persisted
// side of the Mapping Repository (component B), the Execution Engine's
// audit Store, and the Consecutive Service's counter Store. It follows
// forbearing-gst's per-driver Init/New pattern (database/postgres,
// database/sqlite) collapsed into one file since docxfer only needs a
// single bookkeeping connection, not the teacher's multi-database runtime
// registry.
package store

import (
	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

// DB is the process-wide metadata store connection, populated by Init().
var DB *gorm.DB

// Init opens config.App.MetadataStore's connection and migrates every
// model this package defines.
func Init() (err error) {
	cfg := config.App.MetadataStore
	if DB, err = New(cfg); err != nil {
		return errors.Wrap(err, "store: failed to connect to metadata store")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return errors.Wrap(err, "store: failed to get underlying sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := DB.AutoMigrate(&mappingRecord{}, &executionRecord{}, &consecutiveRecord{}); err != nil {
		return errors.Wrap(err, "store: auto-migration failed")
	}

	logger.Store.Infow("metadata store ready", "driver", cfg.Driver)
	return nil
}

// New opens a *gorm.DB for cfg.Driver without touching the package-level DB
// var, so tests can open an independent in-memory sqlite instance.
func New(cfg config.MetadataStore) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Gorm}
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), gcfg)
	case "mysql", "mariadb":
		return gorm.Open(mysql.Open(cfg.DSN), gcfg)
	case "sqlserver", "mssql":
		return gorm.Open(sqlserver.Open(cfg.DSN), gcfg)
	case "sqlite", "":
		return gorm.Open(sqlite.Open(cfg.DSN), gcfg)
	default:
		return nil, errors.Newf("store: unsupported metadata store driver %q", cfg.Driver)
	}
}
