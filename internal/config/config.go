package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// Config holds all configuration for the dispatch engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Provider    ProviderConfig    `yaml:"provider"`
	Regions     []domain.Region   `yaml:"regions"`
	Bucket      BucketConfig      `yaml:"bucket"`
	Suppression SuppressionConfig `yaml:"suppression"`
	Queue       QueueConfig       `yaml:"queue"`
	Warmup      WarmupConfig      `yaml:"warmup"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Alert       AlertConfig       `yaml:"alert"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// RedisConfig holds the shared key/counter store connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// PostgresConfig holds the durable archive connection. Optional: when the
// URL is empty the engine runs without the Postgres archive.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// ProviderConfig holds SES credentials shared by all region clients.
type ProviderConfig struct {
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the explicit per-call provider timeout.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BucketConfig holds token bucket parameters.
type BucketConfig struct {
	Capacity      int64 `yaml:"capacity"`
	RefillPerSec  int64 `yaml:"refill_per_second"`
}

// SuppressionConfig holds suppression list parameters.
type SuppressionConfig struct {
	TTLDays             int `yaml:"ttl_days"`
	SoftBounceThreshold int `yaml:"soft_bounce_threshold"`
}

// TTL returns the suppression entry time-to-live.
func (c SuppressionConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// QueueConfig holds retry queue parameters.
type QueueConfig struct {
	Key              string `yaml:"key"`
	DrainIdleSeconds int    `yaml:"drain_idle_seconds"`
}

// DrainIdle returns the sleep between drain polls when the queue is empty.
func (c QueueConfig) DrainIdle() time.Duration {
	return time.Duration(c.DrainIdleSeconds) * time.Second
}

// WarmupConfig holds warm-up scheduler parameters.
type WarmupConfig struct {
	IntervalMinutes int                 `yaml:"interval_minutes"`
	BatchMax        int64               `yaml:"batch_max"`
	SeedRecipients  []string            `yaml:"seed_recipients"`
	SeedFromName    string              `yaml:"seed_from_name"`
	SeedFromEmail   string              `yaml:"seed_from_email"`
	Templates       []WarmupTemplate    `yaml:"templates"`
	Schedule        []domain.WarmupStep `yaml:"schedule"` // optional override of the built-in ramp table
}

// Interval returns the scheduler tick interval.
func (c WarmupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// WarmupTemplate is one rotated warm-up message template. Subject and HTML
// are liquid templates rendered with the recipient address bound.
type WarmupTemplate struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`
}

// TrackingConfig holds open/click tracking parameters.
type TrackingConfig struct {
	BaseURL string `yaml:"base_url"`
	Secret  string `yaml:"secret"`
}

// AlertConfig holds the operator alert destination.
type AlertConfig struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Bucket.Capacity == 0 {
		cfg.Bucket.Capacity = 100
	}
	if cfg.Bucket.RefillPerSec == 0 {
		cfg.Bucket.RefillPerSec = 50
	}
	if cfg.Suppression.TTLDays == 0 {
		cfg.Suppression.TTLDays = 90
	}
	if cfg.Suppression.SoftBounceThreshold == 0 {
		cfg.Suppression.SoftBounceThreshold = 3
	}
	if cfg.Queue.Key == "" {
		cfg.Queue.Key = "dispatch:retry"
	}
	if cfg.Queue.DrainIdleSeconds == 0 {
		cfg.Queue.DrainIdleSeconds = 2
	}
	if cfg.Warmup.IntervalMinutes == 0 {
		cfg.Warmup.IntervalMinutes = 5
	}
	if cfg.Warmup.BatchMax == 0 {
		cfg.Warmup.BatchMax = 10
	}
	if cfg.Alert.SMTPPort == 0 {
		cfg.Alert.SMTPPort = 587
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Provider.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Provider.SecretKey = v
	}
	if v := os.Getenv("TRACKING_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_SECRET"); v != "" {
		cfg.Tracking.Secret = v
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("config: at least one region is required")
	}
	primaries := 0
	for _, r := range c.Regions {
		if r.Name == "" {
			return fmt.Errorf("config: region with empty name")
		}
		if r.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		return fmt.Errorf("config: exactly one primary region required, got %d", primaries)
	}
	return nil
}
