package facade

import (
	"fmt"

	"github.com/forbearing/docxfer/config"
)

// buildDSN renders cfg into the connection string its driver expects,
// following forbearing-gst's per-dialect buildDSN() functions
// (database/postgres/postgres.go, database/sqlite/sqlite.go).
func buildDSN(driver string, cfg config.ServerConfig) string {
	switch driver {
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
			cfg.Host, cfg.Username, cfg.Password, cfg.Database, cfg.Port)
		if len(cfg.Options) > 0 {
			dsn += " " + cfg.Options
		}
		return dsn
	case DriverMySQL, DriverMariaDB:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		if len(cfg.Options) > 0 {
			dsn += "&" + cfg.Options
		}
		return dsn
	case DriverMSSQL:
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		if len(cfg.Options) > 0 {
			dsn += "&" + cfg.Options
		}
		return dsn
	case DriverMongo:
		dsn := fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		if len(cfg.Options) > 0 {
			dsn += "?" + cfg.Options
		}
		return dsn
	default:
		return ""
	}
}

// sqlDriverName maps a docxfer driver name to the database/sql driver
// registered for it.
func sqlDriverName(driver string) string {
	switch driver {
	case DriverPostgres:
		return "pgx"
	case DriverMySQL, DriverMariaDB:
		return "mysql"
	case DriverMSSQL:
		return "sqlserver"
	default:
		return ""
	}
}
