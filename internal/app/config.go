package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"golang.org/x/text/currency"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const defaultAddr = "127.0.0.1:8080"

// Config holds the complete storefront configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"127.0.0.1:8080" usage:"Storefront API listen address"`
	Namespace string `default:"default" usage:"State namespace, one per device or profile"`
	Currency  string `default:"USD" usage:"ISO 4217 code amounts are displayed in"`
	LoginURL  string `default:"/login" usage:"Where the surface sends unauthenticated users" flag:"login-url"`
	Backend   BackendConfig
	Card      CardConfig
	Payments  PaymentsConfig
	Storage   StorageConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// BackendConfig points at the backend API.
type BackendConfig struct {
	BaseURL         string        `usage:"Backend API base URL, e.g. https://shop.example/api" flag:"backend-url"`
	Timeout         time.Duration `default:"15s" usage:"Per-request timeout of backend calls"`
	BreakerFailures uint32        `default:"5" usage:"Consecutive failures that open the backend circuit, 0 disables it"`
	BreakerTimeout  time.Duration `default:"30s" usage:"How long the backend circuit stays open"`
}

// CardConfig configures the in-process card confirmation.
type CardConfig struct {
	BaseURL        string        `usage:"Card provider API base URL" flag:"card-url"`
	PublishableKey string        `usage:"Card provider publishable key" flag:"card-key"`
	Timeout        time.Duration `default:"30s" usage:"Card confirmation timeout"`
}

// PaymentsConfig maps payment providers to the names the backend expects.
type PaymentsConfig struct {
	CardName   string `default:"card" usage:"Backend name of the CARD provider"`
	WalletName string `default:"wallet" usage:"Backend name of the WALLET provider"`
}

// StorageConfig selects where cart, session and payment records live.
type StorageConfig struct {
	Driver      string        `default:"postgres" usage:"State storage driver: postgres or redis"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL    string        `usage:"Redis connection URL (STOREFRONT_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	PaymentTTL  time.Duration `default:"168h" usage:"Retention of wallet payment records in redis"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string      `default:"*" usage:"Allowed CORS origins"`
	MaxAge  time.Duration `default:"24h" usage:"Preflight cache duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	acfg.EnvPrefix = "STOREFRONT"
	acfg.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps conventional environment variables (PORT,
// DATABASE_URL, REDIS_URL) to the STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "127.0.0.1:" + port
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend URL is required: set STOREFRONT_BACKEND_BASE_URL")
	}
	if c.Card.BaseURL == "" {
		return errors.New("card provider URL is required: set STOREFRONT_CARD_BASE_URL")
	}
	if c.Namespace == "" || strings.ContainsAny(c.Namespace, ": ") {
		return errors.Errorf("namespace %q must be non-empty without spaces or colons", c.Namespace)
	}
	if _, err := c.CurrencyUnit(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set STOREFRONT_STORAGE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// CurrencyUnit parses Currency.
func (c *Config) CurrencyUnit() (currency.Unit, error) {
	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return currency.Unit{}, errors.Wrapf(err, "currency %q", c.Currency)
	}
	return unit, nil
}
