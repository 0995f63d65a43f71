package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"`
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Payments PaymentsConfig `yaml:"payments"`
	Worker   WorkerConfig   `yaml:"worker"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig selects the booking store: postgres, mongo or memory.
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type PricingConfig struct {
	BasePrice float64 `yaml:"base_price"`
}

// gatewayCallsPerFlow is how many processor calls one payment flow can make
// while it holds the booking's payment lock.
const gatewayCallsPerFlow = 4

// PaymentsConfig configures the card processor. Provider is stripe or
// sandbox. LockTTLSeconds defaults to five gateway timeouts and must exceed
// four of them.
type PaymentsConfig struct {
	Provider           string `yaml:"provider"`
	StripeSecretKey    string `yaml:"stripe_secret_key"`
	Currency           string `yaml:"currency"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
	GatewayTimeoutSecs int    `yaml:"gateway_timeout_seconds"`
}

type WorkerConfig struct {
	ReconcileSweepMinutes int `yaml:"reconcile_sweep_minutes"`
	ReconcileBatchSize    int `yaml:"reconcile_batch_size"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.Payments.StripeSecretKey = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Pricing.BasePrice <= 0 {
		c.Pricing.BasePrice = 100
	}
	if c.Payments.Provider == "" {
		c.Payments.Provider = "sandbox"
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "usd"
	}
	if c.Payments.GatewayTimeoutSecs <= 0 {
		c.Payments.GatewayTimeoutSecs = 30
	}
	if c.Payments.LockTTLSeconds <= 0 {
		c.Payments.LockTTLSeconds = (gatewayCallsPerFlow + 1) * c.Payments.GatewayTimeoutSecs
	}
	if c.Worker.ReconcileSweepMinutes <= 0 {
		c.Worker.ReconcileSweepMinutes = 5
	}
	if c.Worker.ReconcileBatchSize <= 0 {
		c.Worker.ReconcileBatchSize = 100
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Payments.Provider {
	case "sandbox":
	case "stripe":
		if c.Payments.StripeSecretKey == "" {
			return fmt.Errorf("stripe provider requires a secret key")
		}
	default:
		return fmt.Errorf("unknown payments provider %q", c.Payments.Provider)
	}
	if floor := gatewayCallsPerFlow * c.Payments.GatewayTimeoutSecs; c.Payments.LockTTLSeconds <= floor {
		return fmt.Errorf("payments lock_ttl_seconds %d must exceed %d (%d gateway calls of %ds)",
			c.Payments.LockTTLSeconds, floor, gatewayCallsPerFlow, c.Payments.GatewayTimeoutSecs)
	}
	return nil
}
