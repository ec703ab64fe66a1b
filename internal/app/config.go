package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/MrEthical07/accesshub"
)

// Config is the accesshubd process configuration, read from the environment.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"accesshubd"`
	Version     string `env:"SERVICE_VERSION" envDefault:"dev"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP     HTTPConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	OTel     OTelConfig
}

type HTTPConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustProxy      bool          `env:"HTTP_TRUST_PROXY" envDefault:"false"`
	MetricsEnabled  bool          `env:"HTTP_METRICS_ENABLED" envDefault:"true"`
}

// RedisConfig selects the ledger backend. An empty Addr starts an
// in-process miniredis, which is only allowed in development.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_PREFIX" envDefault:"ah"`
}

// PostgresConfig selects the credential store. An empty URL keeps users in
// memory.
type PostgresConfig struct {
	URL      string `env:"DATABASE_URL"`
	MaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	Migrate  bool   `env:"DATABASE_MIGRATE" envDefault:"true"`
}

// KafkaConfig selects OTP delivery. Without brokers codes are logged.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_OTP_TOPIC" envDefault:"accesshub.otp"`
}

type AuthConfig struct {
	Issuer         string        `env:"JWT_ISSUER" envDefault:"https://auth.local"`
	Audience       string        `env:"JWT_AUDIENCE" envDefault:"https://api.local"`
	AccessTTL      time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	SigningMethod  string        `env:"JWT_SIGNING_METHOD" envDefault:"ed25519"`
	KeyID          string        `env:"JWT_KEY_ID" envDefault:"default"`
	PrivateKeyFile string        `env:"JWT_PRIVATE_KEY_FILE"`
	RefreshTTL     time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	OTPEnabled     bool          `env:"OTP_ENABLED" envDefault:"false"`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"5m"`
	IPThrottle     bool          `env:"LOGIN_IP_THROTTLE" envDefault:"false"`
	AuditEnabled   bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	ProductionMode bool          `env:"PRODUCTION_MODE" envDefault:"false"`
}

type OTelConfig struct {
	Enabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// LoadConfig parses the environment into a Config and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if !c.IsDevelopment() && c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is required outside development")
	}
	if c.Auth.ProductionMode && c.Auth.PrivateKeyFile == "" {
		return errors.New("JWT_PRIVATE_KEY_FILE is required in production mode")
	}
	if c.OTel.SampleRate < 0 || c.OTel.SampleRate > 1 {
		return errors.New("OTEL_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// EngineConfig maps the process settings onto an engine configuration.
// The signing key is read from PrivateKeyFile when one is set. In
// production mode lifetimes, OTP and throttling come from
// accesshub.HighSecurityConfig and the corresponding variables are ignored.
func (c Config) EngineConfig() (accesshub.Config, error) {
	cfg := accesshub.DefaultConfig()
	if c.Auth.ProductionMode {
		cfg = accesshub.HighSecurityConfig()
	} else {
		cfg.JWT.AccessTTL = c.Auth.AccessTTL
		cfg.Refresh.TTL = c.Auth.RefreshTTL
		cfg.OTP.Enabled = c.Auth.OTPEnabled
		cfg.RateLimit.EnableIPThrottle = c.Auth.IPThrottle
		cfg.Audit.Enabled = c.Auth.AuditEnabled
	}

	cfg.JWT.Issuer = c.Auth.Issuer
	cfg.JWT.Audience = c.Auth.Audience
	cfg.JWT.SigningMethod = c.Auth.SigningMethod
	cfg.JWT.KeyID = c.Auth.KeyID
	if c.Auth.PrivateKeyFile != "" {
		pem, err := os.ReadFile(c.Auth.PrivateKeyFile)
		if err != nil {
			return accesshub.Config{}, fmt.Errorf("read signing key: %w", err)
		}
		cfg.JWT.PrivateKey = pem
	}

	cfg.OTP.TTL = c.Auth.OTPTTL
	cfg.Metrics.Enabled = cfg.Metrics.Enabled || c.HTTP.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.HTTP.MetricsEnabled
	cfg.Storage.RedisPrefix = c.Redis.Prefix
	cfg.Security.ProductionMode = c.Auth.ProductionMode
	return cfg, nil
}
