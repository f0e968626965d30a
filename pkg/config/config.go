package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces every NetBill environment variable.
const EnvPrefix = "netbill"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Billing      BillingConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NETBILL_APP_ENV" required:"true"`
	Port         string `envconfig:"NETBILL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"NETBILL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NETBILL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"NETBILL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"NETBILL_DB_DSN" required:"true"`
	Driver string `envconfig:"NETBILL_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"NETBILL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NETBILL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NETBILL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NETBILL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NETBILL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NETBILL_REDIS_ADDR"`
	Password     string        `envconfig:"NETBILL_REDIS_PASSWORD"`
	DB           int           `envconfig:"NETBILL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NETBILL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NETBILL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NETBILL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NETBILL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NETBILL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BillingConfig drives invoice generation, dunning and commission cascades.
type BillingConfig struct {
	GracePeriodDays    int `envconfig:"NETBILL_BILLING_GRACE_PERIOD_DAYS" default:"7"`
	ProrationBasisDays int `envconfig:"NETBILL_BILLING_PRORATION_BASIS_DAYS" default:"30"`
	BatchChunkSize     int `envconfig:"NETBILL_BILLING_BATCH_CHUNK_SIZE" default:"200"`

	CommissionMaxDepth   int      `envconfig:"NETBILL_COMMISSION_MAX_DEPTH" default:"5"`
	CommissionLevelRates []string `envconfig:"NETBILL_COMMISSION_LEVEL_RATES" default:"5,3"`

	// Account codes for the chart of accounts. The debit side of a payment
	// posting depends on the payment method; the credit side is revenue.
	CashAccountCode          string `envconfig:"NETBILL_ACCOUNT_CODE_CASH" default:"1000"`
	BankAccountCode          string `envconfig:"NETBILL_ACCOUNT_CODE_BANK" default:"1010"`
	MobileWalletAccountCode  string `envconfig:"NETBILL_ACCOUNT_CODE_MOBILE_WALLET" default:"1020"`
	ReceivableAccountCode    string `envconfig:"NETBILL_ACCOUNT_CODE_RECEIVABLE" default:"1100"`
	RevenueAccountCode       string `envconfig:"NETBILL_ACCOUNT_CODE_REVENUE" default:"4000"`
	CommissionExpenseCode    string `envconfig:"NETBILL_ACCOUNT_CODE_COMMISSION_EXPENSE" default:"5100"`
	CommissionPayableCode    string `envconfig:"NETBILL_ACCOUNT_CODE_COMMISSION_PAYABLE" default:"2100"`
	SubscriptionRevenueCode  string `envconfig:"NETBILL_ACCOUNT_CODE_SUBSCRIPTION_REVENUE" default:"4100"`
}

func (b BillingConfig) validate() error {
	if b.GracePeriodDays < 0 {
		return fmt.Errorf("grace period days must not be negative")
	}
	if b.ProrationBasisDays <= 0 {
		return fmt.Errorf("proration basis days must be positive")
	}
	if b.CommissionMaxDepth <= 0 {
		return fmt.Errorf("commission max depth must be positive")
	}
	if _, err := b.LevelRates(); err != nil {
		return err
	}
	return nil
}

// LevelRates parses the per-level commission percentage table. Index 0 is the
// paying customer's direct upline.
func (b BillingConfig) LevelRates() ([]decimal.Decimal, error) {
	rates := make([]decimal.Decimal, 0, len(b.CommissionLevelRates))
	for _, raw := range b.CommissionLevelRates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid commission rate %q: %w", raw, err)
		}
		if rate.IsNegative() {
			return nil, fmt.Errorf("commission rate %q must not be negative", raw)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NETBILL_AUTO_MIGRATE" default:"false"`
}
