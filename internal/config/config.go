package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/laia-connect/billing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Secrets    SecretsConfig    `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Webhook    WebhookConfig
	Sentry     SentryConfig
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

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// SecretsConfig holds every credential the core needs. The encryption key
// is the single master secret the credential vault derives its key from.
type SecretsConfig struct {
	EncryptionKey       string `validate:"required"`
	CronSecret          string
	StripeSecretKey     string
	StripeWebhookSecret string
}

// BillingConfig drives the billing scheduler and the gateway adapter
type BillingConfig struct {
	// CommissionRate is the platform's retained fraction of each charge,
	// e.g. 0.02 for 2%
	CommissionRate decimal.Decimal
	// TrialDays is the free trial period granted at tenant onboarding
	TrialDays int
	// WorkerCount bounds the per-run worker pool for cross-tenant charges
	WorkerCount int
	// ChargeTimeout bounds a single gateway charge call. A timeout is
	// recorded as PENDING, never FAILED.
	ChargeTimeout time.Duration
	// MaxChargeRetries bounds retries of transient gateway errors within
	// one billing cycle
	MaxChargeRetries int
}

// WebhookConfig configures the outbound notification event channel
type WebhookConfig struct {
	Enabled bool
	Topic   string
	// NotificationEndpoint is the URL of the external notification
	// collaborator. Empty disables delivery; events are still published.
	NotificationEndpoint string
	// Headers are sent with every delivery, e.g. a shared auth token
	Headers map[string]string

	// Delivery retry policy
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// SentryConfig configures error reporting
type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

func NewConfig() (*Configuration, error) {
	// .env is optional, used for local development only
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/laia-billing")

	v.SetEnvPrefix("LAIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("billing.commissionrate", "0.02")
	v.SetDefault("billing.trialdays", 30)
	v.SetDefault("billing.workercount", 8)
	v.SetDefault("billing.chargetimeout", "30s")
	v.SetDefault("billing.maxchargeretries", 3)
	v.SetDefault("webhook.enabled", true)
	v.SetDefault("webhook.topic", "billing_events")
	v.SetDefault("webhook.maxretries", 3)
	v.SetDefault("webhook.initialinterval", "1s")
	v.SetDefault("webhook.maxinterval", "10s")
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.maxelapsedtime", "2m")
	v.SetDefault("sentry.samplerate", 1.0)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and tests. This is useful for running scripts or other non-web
// applications.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			CommissionRate:   decimal.NewFromFloat(0.02),
			TrialDays:        30,
			WorkerCount:      4,
			ChargeTimeout:    30 * time.Second,
			MaxChargeRetries: 3,
		},
		Webhook: WebhookConfig{
			Enabled:         true,
			Topic:           "billing_events",
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     10 * time.Second,
			Multiplier:      2.0,
			MaxElapsedTime:  2 * time.Minute,
		},
	}
}
