package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverDynamoDB = "dynamodb"
	StoreDriverMySQL    = "mysql"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PaymentGatewayHTTP        = "http"
	PaymentGatewayMercadoPago = "mercadopago"
)

type Config struct {
	Service        ServiceConfig   `yaml:"service"`
	Store          StoreConfig     `yaml:"store"`
	Cache          CacheConfig     `yaml:"cache"`
	Payment        PaymentConfig   `yaml:"payment"`
	StoreBreaker   BreakerConfig   `yaml:"store_breaker"`
	PaymentBreaker BreakerConfig   `yaml:"payment_breaker"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Kafka          KafkaConfig     `yaml:"kafka"`
	Tracing        TracingConfig   `yaml:"tracing"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the peer address is always the client IP.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type StoreConfig struct {
	Driver           string `yaml:"driver"`
	OrdersTable      string `yaml:"orders_table"`
	AWSRegion        string `yaml:"aws_region"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`
	MySQLDSN         string `yaml:"mysql_dsn"`
	DatabaseURL      string `yaml:"database_url"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	Gateway                string        `yaml:"gateway"`
	ServiceURL             string        `yaml:"service_url"`
	Timeout                time.Duration `yaml:"timeout"`
	BulkheadCapacity       int           `yaml:"bulkhead_capacity"`
	BreakerEnabled         bool          `yaml:"breaker_enabled"`
	MercadoPagoAccessToken string        `yaml:"mercadopago_access_token"`
	Mock                   bool          `yaml:"mock"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

type RateLimitConfig struct {
	Limit         int           `yaml:"limit"`
	Window        time.Duration `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:            "restbucks",
			Port:            8080,
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:      StoreDriverDynamoDB,
			OrdersTable: "orders",
			AWSRegion:   "us-east-1",
		},
		Cache: CacheConfig{TTL: 300 * time.Second},
		Payment: PaymentConfig{
			Gateway:          PaymentGatewayHTTP,
			ServiceURL:       "http://localhost:8001",
			Timeout:          3 * time.Second,
			BulkheadCapacity: 3,
		},
		StoreBreaker:   BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second},
		PaymentBreaker: BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second},
		RateLimit: RateLimitConfig{
			Limit:         10,
			Window:        60 * time.Second,
			SweepInterval: 60 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "order-events"},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	env := envReader{}
	env.stringVar("SERVICE_NAME", &cfg.Service.Name)
	env.intVar("PORT", &cfg.Service.Port)
	env.stringVar("LOG_LEVEL", &cfg.Service.LogLevel)
	env.durationVar("SHUTDOWN_TIMEOUT", &cfg.Service.ShutdownTimeout)
	env.listVar("TRUSTED_PROXIES", &cfg.Service.TrustedProxies)

	env.stringVar("STORE_DRIVER", &cfg.Store.Driver)
	env.stringVar("ORDERS_TABLE", &cfg.Store.OrdersTable)
	env.stringVar("AWS_REGION", &cfg.Store.AWSRegion)
	env.stringVar("DYNAMODB_ENDPOINT", &cfg.Store.DynamoDBEndpoint)
	env.stringVar("MYSQL_DSN", &cfg.Store.MySQLDSN)
	env.stringVar("DATABASE_URL", &cfg.Store.DatabaseURL)

	env.stringVar("REDIS_URL", &cfg.Cache.RedisURL)
	env.durationVar("CACHE_TTL", &cfg.Cache.TTL)

	env.stringVar("PAYMENT_GATEWAY", &cfg.Payment.Gateway)
	env.stringVar("PAYMENT_SERVICE_URL", &cfg.Payment.ServiceURL)
	env.durationVar("PAYMENT_TIMEOUT", &cfg.Payment.Timeout)
	env.intVar("PAYMENT_BULKHEAD_CAPACITY", &cfg.Payment.BulkheadCapacity)
	env.boolVar("PAYMENT_BREAKER_ENABLED", &cfg.Payment.BreakerEnabled)
	env.stringVar("MERCADOPAGO_ACCESS_TOKEN", &cfg.Payment.MercadoPagoAccessToken)
	env.boolVar("PAYMENT_GATEWAY_MOCK", &cfg.Payment.Mock)
	env.boolVar("MERCADOPAGO_MOCK", &cfg.Payment.Mock)

	env.intVar("STORE_BREAKER_FAILURE_THRESHOLD", &cfg.StoreBreaker.FailureThreshold)
	env.durationVar("STORE_BREAKER_RECOVERY_TIMEOUT", &cfg.StoreBreaker.RecoveryTimeout)
	env.intVar("PAYMENT_BREAKER_FAILURE_THRESHOLD", &cfg.PaymentBreaker.FailureThreshold)
	env.durationVar("PAYMENT_BREAKER_RECOVERY_TIMEOUT", &cfg.PaymentBreaker.RecoveryTimeout)

	env.intVar("RATE_LIMIT", &cfg.RateLimit.Limit)
	env.durationVar("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	env.durationVar("RATE_LIMIT_SWEEP_INTERVAL", &cfg.RateLimit.SweepInterval)

	env.listVar("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	env.stringVar("KAFKA_TOPIC", &cfg.Kafka.Topic)

	env.stringVar("JAEGER_ENDPOINT", &cfg.Tracing.JaegerEndpoint)

	if len(env.errs) > 0 {
		return Config{}, fmt.Errorf("invalid environment: %s", strings.Join(env.errs, "; "))
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var problems []string
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		problems = append(problems, "port must be in 1..65535")
	}
	for _, p := range c.Service.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				problems = append(problems, fmt.Sprintf("trusted proxy %q is not an IP or CIDR", p))
			}
		}
	}
	switch c.Store.Driver {
	case StoreDriverDynamoDB:
		if c.Store.OrdersTable == "" {
			problems = append(problems, "orders table is required for dynamodb")
		}
	case StoreDriverMySQL:
		if c.Store.MySQLDSN == "" {
			problems = append(problems, "MYSQL_DSN is required for mysql")
		}
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for postgres")
		}
	case StoreDriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Payment.Gateway {
	case PaymentGatewayHTTP:
		if c.Payment.ServiceURL == "" {
			problems = append(problems, "PAYMENT_SERVICE_URL is required for the http gateway")
		}
	case PaymentGatewayMercadoPago:
		if !c.Payment.Mock && c.Payment.MercadoPagoAccessToken == "" {
			problems = append(problems, "MERCADOPAGO_ACCESS_TOKEN is required unless mock mode is on")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown payment gateway %q", c.Payment.Gateway))
	}
	if c.Payment.Timeout <= 0 {
		problems = append(problems, "payment timeout must be positive")
	}
	if c.Payment.BulkheadCapacity <= 0 {
		problems = append(problems, "payment bulkhead capacity must be positive")
	}
	for name, b := range map[string]BreakerConfig{"store": c.StoreBreaker, "payment": c.PaymentBreaker} {
		if b.FailureThreshold <= 0 {
			problems = append(problems, name+" breaker failure threshold must be positive")
		}
		if b.RecoveryTimeout <= 0 {
			problems = append(problems, name+" breaker recovery timeout must be positive")
		}
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		problems = append(problems, "rate limit and window must be positive")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "cache ttl must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		problems = append(problems, "KAFKA_TOPIC is required when brokers are set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

type envReader struct {
	errs []string
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) stringVar(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) intVar(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not an integer", key, v))
		return
	}
	*dst = n
}

// durationVar accepts Go durations ("1.5s") or plain seconds ("60").
func (r *envReader) durationVar(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return
	}
	*dst = d
}

func (r *envReader) boolVar(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on", "mock":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a boolean", key, v))
	}
}

func (r *envReader) listVar(key string, dst *[]string) {
	v, ok := r.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
