package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	setDefaults(v)

	var config Config
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", StoreDriverPostgres)
	// empty defaults register the keys so APP_POSTGRES_* env vars are picked up by Unmarshal
	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 1)
	v.SetDefault("postgres.max_conn_lifetime", 3600)
	v.SetDefault("postgres.max_conn_idle_time", 300)
	v.SetDefault("postgres.health_check_period", 30)
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("search.snapshot", false)
}

// Validate checks struct tags plus the cross-section rules tags can't express.
// Logger settings are validated by logger.New, which also fills their defaults.
func (c *Config) Validate() error {
	v := validator.New()
	for name, section := range map[string]any{"postgres": c.Postgres, "search": c.Search, "store": c.Store} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("config validation error in %s: %w", name, err)
		}
	}
	if c.Store.Driver == StoreDriverPostgres && c.Postgres.Host == "" {
		return errors.New("config validation error: postgres.host is required for the postgres store driver")
	}
	return nil
}
