package app

import (
	"os"
	"strconv"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/chilirig-checkout/internal/domain/pricing"
	"github.com/xenking/chilirig-checkout/internal/pathao"
	"github.com/xenking/chilirig-checkout/internal/storage/postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (CHILIRIG_ prefix), flags, YAML config files and a
// local .env file.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL; enables the order_audit sink and /admin routes" flag:"database-url"`
	AdminKey     string `usage:"Shared secret for /admin routes (CHILIRIG_ADMIN_KEY or ADMIN_PASSWORD)" flag:"admin-key"`
	MaxBodyBytes int64  `default:"65536" usage:"Maximum request body size in bytes" flag:"max-body-bytes"`
	Pathao       PathaoConfig
	Audit        AuditConfig
	Geo          GeoConfig
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PathaoConfig configures the courier client. The courier is disabled
// unless all four credentials are set.
type PathaoConfig struct {
	BaseURL      string        `default:"https://courier-api-sandbox.pathao.com" usage:"Courier API base URL"`
	ClientID     string        `usage:"Courier OAuth client id"`
	ClientSecret string        `usage:"Courier OAuth client secret"`
	Username     string        `usage:"Courier merchant username"`
	Password     string        `usage:"Courier merchant password"`
	StoreID      int64         `usage:"Courier merchant store id; required for quotes and consignments"`
	Timeout      time.Duration `default:"15s" usage:"Courier request timeout"`
}

// Credentials returns the password-grant credentials.
func (c PathaoConfig) Credentials() pathao.Credentials {
	return pathao.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Username:     c.Username,
		Password:     c.Password,
	}
}

// AuditConfig configures the webhook audit sink.
type AuditConfig struct {
	WebhookURL string        `usage:"Order webhook URL (CHILIRIG_AUDIT_WEBHOOK_URL or GOOGLE_SCRIPT_ORDERS_URL)"`
	Timeout    time.Duration `default:"10s" usage:"Webhook request timeout"`
}

// GeoConfig configures the geography snapshot fallback.
type GeoConfig struct {
	SnapshotPath string        `usage:"Gzip geography snapshot served when the courier geography API fails" flag:"geo-snapshot"`
	MaxAge       time.Duration `default:"720h" usage:"Snapshot age after which /readyz reports degraded"`
}

// PricingConfig configures fee reconciliation.
type PricingConfig struct {
	HandlingFeeRate string `default:"0.01" usage:"Courier COD handling fee rate, in [0, 1)"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
// Order placement has its own, smaller budget: every placed order becomes a
// courier parcel.
type RateLimitConfig struct {
	Max          int           `default:"100" usage:"Max requests per window"`
	Window       time.Duration `default:"1m"  usage:"Rate limit window duration"`
	OrdersMax    int           `default:"10"  usage:"Max POST /orders per orders window"`
	OrdersWindow time.Duration `default:"10m" usage:"Order placement rate limit window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables, YAML
// config files and flags, then applies the storefront's legacy variable
// names.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	base.EnvPrefix = "CHILIRIG"
	if !base.SkipFiles {
		base.Files = []string{"config.yaml", "/etc/chilirig/config.yaml"}
		base.FileDecoders = map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		}
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the variable names used by the storefront
// deployment (PATHAO_*, GOOGLE_SCRIPT_ORDERS_URL, ADMIN_PASSWORD) and by
// hosting platforms (DATABASE_URL, PORT) onto unset CHILIRIG_ settings.
func (c *Config) applyPlatformDefaults() error {
	fallback := func(dst *string, env string) {
		if *dst == "" {
			*dst = os.Getenv(env)
		}
	}
	fallback(&c.DatabaseURL, "DATABASE_URL")
	fallback(&c.AdminKey, "ADMIN_PASSWORD")
	fallback(&c.Audit.WebhookURL, "GOOGLE_SCRIPT_ORDERS_URL")
	fallback(&c.Pathao.ClientID, "PATHAO_CLIENT_ID")
	fallback(&c.Pathao.ClientSecret, "PATHAO_CLIENT_SECRET")
	fallback(&c.Pathao.Username, "PATHAO_USERNAME")
	fallback(&c.Pathao.Password, "PATHAO_PASSWORD")

	if v := os.Getenv("PATHAO_BASE_URL"); v != "" && c.Pathao.BaseURL == pathao.DefaultBaseURL {
		c.Pathao.BaseURL = v
	}
	if v := os.Getenv("PATHAO_STORE_ID"); v != "" && c.Pathao.StoreID == 0 {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "parse PATHAO_STORE_ID")
		}
		c.Pathao.StoreID = id
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	return nil
}

func (c *Config) validate() error {
	creds := c.Pathao.Credentials()
	partial := creds.ClientID != "" || creds.ClientSecret != "" || creds.Username != "" || creds.Password != ""
	if partial && !creds.Complete() {
		return errors.Wrap(pathao.ErrCredentials, "courier credentials are incomplete")
	}
	if c.RateLimit.Max < 1 || c.RateLimit.OrdersMax < 1 || c.RateLimit.Window <= 0 || c.RateLimit.OrdersWindow <= 0 {
		return errors.New("rate limit budgets must be positive")
	}
	if _, err := c.Reconciler(); err != nil {
		return err
	}
	return nil
}

// WriteTimeout is the longest a POST /orders may take: a courier token
// exchange and the consignment call, the audit insert and the webhook
// mirror, plus slack for encoding the response.
func (c *Config) WriteTimeout() time.Duration {
	return 2*c.Pathao.Timeout + postgres.AppendTimeout + c.Audit.Timeout + 5*time.Second
}

// CourierEnabled reports whether courier credentials are configured.
func (c *Config) CourierEnabled() bool {
	return c.Pathao.Credentials().Complete()
}

// Reconciler builds the fee reconciler for the configured rate.
func (c *Config) Reconciler() (*pricing.Reconciler, error) {
	rate, err := decimal.NewFromString(c.Pricing.HandlingFeeRate)
	if err != nil {
		return nil, errors.Wrap(err, "parse handling fee rate")
	}
	r, err := pricing.NewReconciler(rate)
	if err != nil {
		return nil, errors.Wrapf(err, "handling fee rate %s", rate)
	}
	return r, nil
}
