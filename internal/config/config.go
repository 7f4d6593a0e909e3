package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the API process needs, read from KB_* environment
// variables. A .env file in the working directory is loaded first when
// present so local development does not need an exported environment.
type Config struct {
	Addr        string `env:"KB_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"KB_DATABASE_URL"`

	AccessTokenSecret  string        `env:"KB_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"KB_REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"KB_ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTokenTTL    time.Duration `env:"KB_REFRESH_TOKEN_TTL" envDefault:"168h"`
	TokenIssuer        string        `env:"KB_TOKEN_ISSUER" envDefault:"kingsbuilder"`

	CORSOrigins []string `env:"KB_CORS_ORIGINS" envSeparator:","`

	RatePerSec float64 `env:"KB_RATE_PER_SEC" envDefault:"25"`
	RateBurst  int     `env:"KB_RATE_BURST" envDefault:"50"`

	MasterAdminUsername string `env:"KB_MASTER_ADMIN_USERNAME" envDefault:"master_admin"`
	MasterAdminEmail    string `env:"KB_MASTER_ADMIN_EMAIL" envDefault:"admin@kingsbuilder.org"`
	MasterAdminPassword string `env:"KB_MASTER_ADMIN_PASSWORD"`

	MigrationsDir string `env:"KB_MIGRATIONS_DIR" envDefault:"migrations"`
	SeedsDir      string `env:"KB_SEEDS_DIR" envDefault:"seeds"`

	ReadTimeout     time.Duration `env:"KB_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"KB_WRITE_TIMEOUT" envDefault:"20s"`
	ShutdownTimeout time.Duration `env:"KB_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: KB_DATABASE_URL is required")
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("config: KB_ACCESS_TOKEN_SECRET and KB_REFRESH_TOKEN_SECRET are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("config: access and refresh token secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.RatePerSec <= 0 || c.RateBurst <= 0 {
		return errors.New("config: rate limit settings must be positive")
	}
	return nil
}
