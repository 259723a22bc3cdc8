package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains client configuration parameters.
type Config struct {
	LogLevel  int      `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat string   `env:"LOG_FORMAT" envDefault:"text"`
	API       API      `envPrefix:"API_"`
	Session   Session  `envPrefix:"SESSION_"`
	Cache     Cache    `envPrefix:"CACHE_"`
	Catalog   Catalog  `envPrefix:"CATALOG_"`
	Tracking  Tracking `envPrefix:"TRACKING_"`
}

// API contains catalog API connection parameters.
type API struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8000/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`

	// CAFile adds a trusted PEM bundle for https base URLs.
	CAFile string `env:"CA_FILE"`
	// CertFile and KeyFile enable a client certificate.
	CertFile string `env:"CERT_FILE"`
	KeyFile  string `env:"KEY_FILE"`
}

// Session contains token persistence parameters. An empty TokenFile means
// the user config directory is used. With Persist off the token lives only
// as long as the process.
type Session struct {
	TokenFile string `env:"TOKEN_FILE"`
	Persist   bool   `env:"PERSIST" envDefault:"true"`
}

// Cache contains query cache parameters.
type Cache struct {
	Size int `env:"SIZE" envDefault:"256"`
}

// Catalog contains product browsing parameters.
type Catalog struct {
	PageSize int `env:"PAGE_SIZE" envDefault:"20"`
}

// Tracking contains interaction tracking parameters.
type Tracking struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// NewConfig loads configuration from environment variables. Values from a
// .env file in the working directory are applied first without overriding
// variables that are already set.
func NewConfig() (*Config, error) {
	return Load(".env")
}

// Load is NewConfig with explicit dotenv files. Missing files are ignored.
func Load(dotenvFiles ...string) (*Config, error) {
	for _, name := range dotenvFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL must not be empty")
	}
	if (c.API.CertFile == "") != (c.API.KeyFile == "") {
		return fmt.Errorf("API_CERT_FILE and API_KEY_FILE must be set together")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.Cache.Size)
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("CATALOG_PAGE_SIZE must be positive, got %d", c.Catalog.PageSize)
	}
	return nil
}
