package app

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/MuadBenMusa/sparkcore-backend/pkg/iban"
)

// MinJWTSecretBytes is the shortest HS256 key accepted.
const MinJWTSecretBytes = 32

type Config struct {
	Env                 string        `env:"ENV" env-default:"dev"`
	LogLevel            string        `env:"LOG_LEVEL" env-default:"info"`
	LogFormat           string        `env:"LOG_FORMAT" env-default:"json"`
	Port                int           `env:"PORT" env-default:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" env-default:"10s"`

	DatabaseDriver string `env:"DATABASE_DRIVER" env-default:"sqlite"` // sqlite or postgres
	DatabaseFile   string `env:"DATABASE_FILE" env-default:"bank.db"`
	DatabaseURL    string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	JWTSecret  string `env:"JWT_SECRET" env-required:"true"` // base64
	JWTIssuer  string `env:"JWT_ISSUER" env-default:"sparkcore-bank"`
	PepperFile string `env:"PEPPER_FILE" env-default:"pepper"`
	BankCode   string `env:"BANK_CODE" env-default:"10050000"`

	RateLimitBackend  string        `env:"RATE_LIMIT_BACKEND" env-default:"redis"` // redis or memory
	LoginRateCapacity int           `env:"LOGIN_RATE_CAPACITY" env-default:"5"`
	LoginRateWindow   time.Duration `env:"LOGIN_RATE_WINDOW" env-default:"60s"`

	AuditStream    string `env:"AUDIT_STREAM" env-default:"audit:events"`
	AuditGroup     string `env:"AUDIT_GROUP" env-default:"audit-writers"`
	AuditConsumer  string `env:"AUDIT_CONSUMER"` // defaults to the hostname
	AuditWorkers   int    `env:"AUDIT_WORKERS" env-default:"2"`
	AuditQueueSize int    `env:"AUDIT_QUEUE_SIZE" env-default:"1024"`

	HousekeepingSchedule string `env:"HOUSEKEEPING_SCHEDULE" env-default:"@every 1h"`

	// Seeded as ADMIN at startup when both are set.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// LoadConfig reads the environment, after loading .env if present.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if cfg.AuditConsumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "bank"
		}
		cfg.AuditConsumer = host
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.JWTKey(); err != nil {
		errs = append(errs, err)
	}
	if _, err := iban.Generate(c.BankCode, "1"); err != nil {
		errs = append(errs, fmt.Errorf("BANK_CODE: must be exactly 8 digits"))
	}

	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("DATABASE_FILE: required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL: required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER: unknown driver %q", c.DatabaseDriver))
	}

	switch c.RateLimitBackend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND: unknown backend %q", c.RateLimitBackend))
	}
	if c.LoginRateCapacity < 1 || c.LoginRateWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_CAPACITY and LOGIN_RATE_WINDOW must be positive"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

// JWTKey decodes JWT_SECRET.
func (c Config) JWTKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.JWTSecret)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(c.JWTSecret)
	}
	if err != nil {
		return nil, errors.New("JWT_SECRET: not valid base64")
	}
	if len(key) < MinJWTSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET: must decode to at least %d bytes", MinJWTSecretBytes)
	}
	return key, nil
}
