// Package config loads docxfer's configuration the way forbearing-gst's
// config package does: a single struct-of-structs (Config) populated from
// defaults, an optional ini/yaml/json config file, and environment
// variables, in that priority order (env highest).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-viper/encoding/ini"
	"github.com/spf13/viper"
)

// App is the process-wide configuration singleton, populated by Init().
var App = new(Config)

var (
	configPaths = []string{".", "/etc/docxfer/"}
	configName  = "docxfer"
	configType  = "yaml"
	configFile  = ""

	cv *viper.Viper
)

// Config aggregates every configuration section docxfer needs. Sections
// mirror the teacher's one-struct-per-concern layout; unlike the teacher
// there is no Auth/Grpc/Ldap/etc. section because the core has no HTTP/auth
// surface (spec.md §1 Non-goals).
type Config struct {
	AppInfo       `json:"app" mapstructure:"app" yaml:"app"`
	Server        `json:"server" mapstructure:"server" yaml:"server"`
	Logger        `json:"logger" mapstructure:"logger" yaml:"logger"`
	MetadataStore `json:"metadata_store" mapstructure:"metadata_store" yaml:"metadata_store"`
	Redis         `json:"redis" mapstructure:"redis" yaml:"redis"`
	Audit         `json:"audit" mapstructure:"audit" yaml:"audit"`
	Consecutive   `json:"consecutive" mapstructure:"consecutive" yaml:"consecutive"`

	// Servers holds one entry per named source/target server key that
	// mapping.Mapping.SourceServer/TargetServer refer to. This is the
	// multi-dialect analog of the teacher's separate Postgres/MySQL/
	// SQLServer/Mongo config structs.
	Servers map[string]ServerConfig `json:"servers" mapstructure:"servers" yaml:"servers"`
}

type AppInfo struct {
	Name    string `json:"name" mapstructure:"name" yaml:"name" default:"docxfer"`
	Version string `json:"version" mapstructure:"version" yaml:"version" default:"dev"`
	Mode    string `json:"mode" mapstructure:"mode" yaml:"mode" default:"release"`
}

type Server struct {
	// HTTPAddr serves /healthz and /metrics only — never a mapping CRUD or
	// auth surface (spec.md §1 Non-goals put the REST API out of core scope).
	HTTPAddr                string        `json:"http_addr" mapstructure:"http_addr" yaml:"http_addr" default:":9090"`
	MaxConcurrentExecutions int           `json:"max_concurrent_executions" mapstructure:"max_concurrent_executions" yaml:"max_concurrent_executions" default:"8"`
	WatchdogTimeout         time.Duration `json:"watchdog_timeout" mapstructure:"watchdog_timeout" yaml:"watchdog_timeout" default:"120s"`
	ConnectRetries          int           `json:"connect_retries" mapstructure:"connect_retries" yaml:"connect_retries" default:"3"`
	ConnectBackoff          time.Duration `json:"connect_backoff" mapstructure:"connect_backoff" yaml:"connect_backoff" default:"1s"`
}

type Logger struct {
	Level      string `json:"level" mapstructure:"level" yaml:"level" default:"info"`
	Format     string `json:"format" mapstructure:"format" yaml:"format" default:"json"`
	Dir        string `json:"dir" mapstructure:"dir" yaml:"dir" default:""`
	MaxSize    int    `json:"max_size" mapstructure:"max_size" yaml:"max_size" default:"100"`
	MaxAge     int    `json:"max_age" mapstructure:"max_age" yaml:"max_age" default:"7"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups" yaml:"max_backups" default:"5"`
}

// MetadataStore is the GORM connection backing store/ (mapping
// definitions, execution records, counter documents). It is deliberately
// separate from Servers: Servers are the business source/target databases
// the engine moves documents between, MetadataStore is docxfer's own
// bookkeeping database.
type MetadataStore struct {
	Driver             string        `json:"driver" mapstructure:"driver" yaml:"driver" default:"sqlite"`
	DSN                string        `json:"dsn" mapstructure:"dsn" yaml:"dsn" default:"file:docxfer.db?cache=shared"`
	MaxOpenConns       int           `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns" default:"10"`
	MaxIdleConns       int           `json:"max_idle_conns" mapstructure:"max_idle_conns" yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" default:"1h"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold" mapstructure:"slow_query_threshold" yaml:"slow_query_threshold" default:"200ms"`
}

type Redis struct {
	Enable   bool   `json:"enable" mapstructure:"enable" yaml:"enable" default:"false"`
	Addr     string `json:"addr" mapstructure:"addr" yaml:"addr" default:"127.0.0.1:6379"`
	Password string `json:"password" mapstructure:"password" yaml:"password" default:""`
	DB       int    `json:"db" mapstructure:"db" yaml:"db" default:"0"`
}

type Audit struct {
	Enable        bool          `json:"enable" mapstructure:"enable" yaml:"enable" default:"true"`
	AsyncWrite    bool          `json:"async_write" mapstructure:"async_write" yaml:"async_write" default:"true"`
	BatchSize     int           `json:"batch_size" mapstructure:"batch_size" yaml:"batch_size" default:"200"`
	FlushInterval time.Duration `json:"flush_interval" mapstructure:"flush_interval" yaml:"flush_interval" default:"5s"`
	QueueSize     int           `json:"queue_size" mapstructure:"queue_size" yaml:"queue_size" default:"10000"`
}

// Consecutive configures the Consecutive Service (spec.md §4.4).
type Consecutive struct {
	ReservationTTL time.Duration `json:"reservation_ttl" mapstructure:"reservation_ttl" yaml:"reservation_ttl" default:"5m"`
	SweepInterval  time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval" default:"30s"`
	MetricsWindow  time.Duration `json:"metrics_window" mapstructure:"metrics_window" yaml:"metrics_window" default:"1h"`
}

// ServerConfig describes one named source/target database the facade can
// acquire connections to (spec.md §4.5 getConnection(serverKey)).
type ServerConfig struct {
	Driver          string        `json:"driver" mapstructure:"driver" yaml:"driver"` // mssql, postgres, mysql, mariadb, mongodb
	Host            string        `json:"host" mapstructure:"host" yaml:"host"`
	Port            int           `json:"port" mapstructure:"port" yaml:"port"`
	Username        string        `json:"username" mapstructure:"username" yaml:"username"`
	Password        string        `json:"password" mapstructure:"password" yaml:"password"`
	Database        string        `json:"database" mapstructure:"database" yaml:"database"`
	Options         string        `json:"options" mapstructure:"options" yaml:"options"` // raw driver-specific query string appended to the DSN
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns" default:"10"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" default:"30m"`
}

func (c *Config) setDefault() error { return defaults.Set(c) }

// Init loads configuration with priority env > file > defaults, matching
// the teacher's config.Init() precedence comment.
func Init() error {
	codecRegistry := viper.NewCodecRegistry()
	if err := codecRegistry.RegisterCodec("ini", ini.Codec{}); err != nil {
		return err
	}
	cv = viper.NewWithOptions(viper.WithCodecRegistry(codecRegistry))
	cv.AutomaticEnv()
	cv.AllowEmptyEnv(true)
	cv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	App = new(Config)
	if err := App.setDefault(); err != nil {
		return errors.Wrap(err, "failed to set config defaults")
	}

	if len(configFile) > 0 {
		cv.SetConfigFile(configFile)
	} else {
		cv.SetConfigName(configName)
		cv.SetConfigType(configType)
	}
	for _, p := range configPaths {
		cv.AddConfigPath(p)
	}

	if err := cv.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrap(err, "failed to read config file")
		}
		fmt.Fprintln(os.Stderr, "no config file found, using defaults and environment overrides")
	}
	if err := cv.Unmarshal(App); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}
	return nil
}

// SetConfigFile overrides the config file path, used by tests and the CLI
// --config flag.
func SetConfigFile(file string) { configFile = file }
