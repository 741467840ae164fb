package app

import (
	"strings"

	"github.com/charlesng35/longevity/internal/database"
)

// UsesMemoryStore reports whether persistence is disabled entirely.
func (c DatabaseConfig) UsesMemoryStore() bool {
	return strings.EqualFold(strings.TrimSpace(c.Driver), "memory")
}

// ConnectionConfig converts the database section into database.Config for the selected driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver: driver,
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),

		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
	}

	var auth DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql":
		auth = c.MySQL
	default:
		return cfg
	}

	cfg.Host = strings.TrimSpace(auth.Host)
	cfg.Port = auth.Port
	cfg.Name = strings.TrimSpace(auth.Database)
	cfg.User = strings.TrimSpace(auth.Username)
	cfg.Password = auth.Password
	if len(auth.Options) > 0 {
		cfg.Options = make(map[string]string, len(auth.Options))
		for k, v := range auth.Options {
			cfg.Options[k] = v
		}
	}
	return cfg
}
