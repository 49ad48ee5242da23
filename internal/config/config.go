package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Stripe     StripeConfig
	Polar      PolarConfig
	Plans      PlansConfig
	Cache      CacheConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StripeConfig carries the Stripe API credentials and the catalog mapping
// from our plan tiers to Stripe price identifiers.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	LitePriceID   string
	ProPriceID    string
}

// PolarConfig carries the Polar API credentials and product mapping.
// Polar signs webhooks per the Standard Webhooks spec.
type PolarConfig struct {
	AccessToken   string
	APIBaseURL    string
	WebhookSecret string
	SuccessURL    string
	LiteProductID string
	ProProductID  string
}

// PlansConfig overrides the built-in page limits and prices per tier.
type PlansConfig struct {
	FreePageLimit int
	LitePageLimit int
	ProPageLimit  int
	LitePriceUSD  string
	ProPriceUSD   string
}

type CacheConfig struct {
	Enabled bool
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	// Optional local overrides; missing .env is fine
	_ = godotenv.Load()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bankconvert")

	v.SetEnvPrefix("BANKCONVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.RunModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "bankconvert")
	v.SetDefault("postgres.dbname", "bankconvert")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("polar.apibaseurl", "https://api.polar.sh")
	v.SetDefault("plans.freepagelimit", 50)
	v.SetDefault("plans.litepagelimit", 500)
	v.SetDefault("plans.propagelimit", 1000)
	v.SetDefault("plans.litepriceusd", "12")
	v.SetDefault("plans.propriceusd", "24")
	v.SetDefault("cache.enabled", true)
}

func (c *Configuration) Validate() error {
	return validator.New().Struct(c)
}

// GetDSN returns the postgres connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
