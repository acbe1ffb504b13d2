package config

import (
	"github.com/maxviazov/member-search-service/internal/logger"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Logger   logger.LoggerConfig `mapstructure:"logger"`
	Postgres PostgresConfig      `mapstructure:"postgres"`
	Search   SearchConfig        `mapstructure:"search"`
	Store    StoreConfig         `mapstructure:"store"`
}

// PostgresConfig carries connection and pool tuning. Durations are in seconds.
type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	DBName            string `mapstructure:"dbname"`
	SSLMode           string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns          int32  `mapstructure:"max_conns" validate:"gte=0"`
	MinConns          int32  `mapstructure:"min_conns" validate:"gte=0"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime" validate:"gte=0"`
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time" validate:"gte=0"`
	HealthCheckPeriod int    `mapstructure:"health_check_period" validate:"gte=0"`
}

// SearchConfig bounds paging requests accepted by the service layer.
// Snapshot runs content and count in one repeatable-read transaction (postgres only).
type SearchConfig struct {
	DefaultPageSize int  `mapstructure:"default_page_size" validate:"gt=0,ltefield=MaxPageSize"`
	MaxPageSize     int  `mapstructure:"max_page_size" validate:"gt=0"`
	Snapshot        bool `mapstructure:"snapshot"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres memory"`
}
