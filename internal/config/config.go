// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	ServiceName string
	LogFile     string

	StoreDriver   string // postgres | memory
	DatabaseURL   string
	AutoMigrate   bool
	CartDriver    string // redis | memory
	RedisAddr     string
	RedisPassword string

	JWTSecret string
	JWTTTL    time.Duration

	ClientURL     string
	PublicBaseURL string

	Momo Momo

	PaymentTimeout time.Duration
	SweepInterval  time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// Momo holds the payment gateway credentials and endpoints.
type Momo struct {
	Endpoint          string
	PartnerCode       string
	AccessKey         string
	SecretKey         string
	RequestType       string
	Timeout           time.Duration
	RequestSignFields []string
	NotifySignFields  []string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := &env{get: getenv}
	cfg := &Config{
		Port:          e.str("APP_PORT", "8080"),
		Env:           e.str("APP_ENV", "dev"),
		ServiceName:   e.str("SERVICE_NAME", "storefront-api"),
		LogFile:       e.str("LOG_FILE", ""),
		StoreDriver:   strings.ToLower(e.str("STORE_DRIVER", "postgres")),
		DatabaseURL:   e.str("DATABASE_URL", ""),
		AutoMigrate:   e.boolean("DB_AUTO_MIGRATE", true),
		CartDriver:    strings.ToLower(e.str("CART_DRIVER", "redis")),
		RedisAddr:     e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		JWTSecret:     e.str("JWT_SECRET", ""),
		JWTTTL:        e.duration("JWT_TTL", 24*time.Hour),
		ClientURL:     strings.TrimRight(e.str("CLIENT_URL", "http://localhost:3000"), "/"),
		PublicBaseURL: strings.TrimRight(e.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		Momo: Momo{
			Endpoint:          e.str("MOMO_ENDPOINT", "https://test-payment.momo.vn/v2/gateway/api/create"),
			PartnerCode:       e.str("MOMO_PARTNER_CODE", ""),
			AccessKey:         e.str("MOMO_ACCESS_KEY", ""),
			SecretKey:         e.str("MOMO_SECRET_KEY", ""),
			RequestType:       e.str("MOMO_REQUEST_TYPE", "captureWallet"),
			Timeout:           e.duration("MOMO_TIMEOUT", 10*time.Second),
			RequestSignFields: e.list("MOMO_REQUEST_SIGNATURE_FIELDS"),
			NotifySignFields:  e.list("MOMO_NOTIFY_SIGNATURE_FIELDS"),
		},
		PaymentTimeout: e.duration("PAYMENT_TIMEOUT", 15*time.Minute),
		SweepInterval:  e.duration("SWEEP_INTERVAL", time.Minute),
		KafkaBrokers:   e.list("KAFKA_BROKERS"),
		KafkaTopic:     e.str("KAFKA_TOPIC", "storefront.orders"),
	}
	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.CartDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown CART_DRIVER %q", c.CartDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PaymentTimeout <= 0 || c.SweepInterval <= 0 {
		return errors.New("PAYMENT_TIMEOUT and SWEEP_INTERVAL must be positive")
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e *env) boolean(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid bool %q", key, v))
		return def
	}
	return b
}

func (e *env) list(key string) []string {
	var out []string
	for _, part := range strings.Split(e.get(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
