package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"geo-challenges"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`

	Redis     Redis
	Store     Store
	GeoGuessr GeoGuessr
	Import    Import
}

// Redis holds the challenge cache connection.
type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize  int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"geochallenge"`
}

// Store selects where records live.
type Store struct {
	Backend string `env:"STORE_BACKEND" envDefault:"redis"`
}

// GeoGuessr configures the remote fetch client. NCFAToken is the fallback
// session cookie when a request carries none.
type GeoGuessr struct {
	BaseURL     string        `env:"GEOGUESSR_BASE_URL" envDefault:"https://www.geoguessr.com"`
	NCFAToken   string        `env:"GEOGUESSR_NCFA_TOKEN" envDefault:""`
	HTTPTimeout time.Duration `env:"GEOGUESSR_HTTP_TIMEOUT" envDefault:"20s"`
}

// Import paces bulk imports.
type Import struct {
	BatchSize  int           `env:"IMPORT_BATCH_SIZE" envDefault:"8"`
	BatchDelay time.Duration `env:"IMPORT_BATCH_DELAY" envDefault:"800ms"`
	Stagger    time.Duration `env:"IMPORT_STAGGER" envDefault:"200ms"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) validate() error {
	switch c.Store.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.Store.Backend)
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", c.Import.BatchSize)
	}
	if c.Import.BatchDelay < 0 || c.Import.Stagger < 0 {
		return fmt.Errorf("import delays must not be negative")
	}
	return nil
}
