package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the dispatch engine binaries need. Values come
// from a YAML file, with environment variables taking precedence so deploys
// can override single keys without editing the file.
type Config struct {
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"database"`
	} `yaml:"database"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Redis struct {
		Addr     string `yaml:"addr"` // empty means "use the in-memory availability store"
		Password string `yaml:"password"`
		GeoKey   string `yaml:"geo_key"`
	} `yaml:"redis"`

	Kafka struct {
		Brokers        []string `yaml:"brokers"` // empty disables the heartbeat stream
		HeartbeatTopic string   `yaml:"heartbeat_topic"`
		ConsumerGroup  string   `yaml:"consumer_group"`
	} `yaml:"kafka"`

	JWT struct {
		SecretKey string        `yaml:"secret_key"`
		AccessTTL time.Duration `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Services struct {
		DispatchServicePort int `yaml:"dispatch_service"`
	} `yaml:"services"`

	Dispatch struct {
		PerOfferTimeout    time.Duration `yaml:"per_offer_timeout"`
		HeartbeatStaleness time.Duration `yaml:"heartbeat_staleness"`
		MatchRetries       int           `yaml:"match_retries"`
		RetryBackoff       time.Duration `yaml:"retry_backoff"`
		SearchRadiusKM     float64       `yaml:"search_radius_km"`
		MaxCandidates      int           `yaml:"max_candidates"`
	} `yaml:"dispatch"`

	ETA struct {
		OSRMEndpoint    string        `yaml:"osrm_endpoint"` // empty means straight-line only
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		DefaultSpeedKMH float64       `yaml:"default_speed_kmh"`
	} `yaml:"eta"`
}

// LoadFromFile reads the YAML config, layers environment overrides on top,
// applies defaults, and validates required fields. A missing file is not an
// error as long as the environment provides the required values.
func LoadFromFile(path string) (*Config, error) {
	// .env is best-effort local convenience, same as the env itself
	_ = godotenv.Load()

	var cfg Config
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env + defaults
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays environment variables over file values.
func (c *Config) applyEnv() {
	overrideString(&c.Database.Host, "DB_HOST")
	overrideInt(&c.Database.Port, "DB_PORT")
	overrideString(&c.Database.User, "DB_USER")
	overrideString(&c.Database.Password, "DB_PASSWORD")
	overrideString(&c.Database.Name, "DB_NAME")

	overrideString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	overrideInt(&c.RabbitMQ.Port, "RABBITMQ_PORT")
	overrideString(&c.RabbitMQ.User, "RABBITMQ_USER")
	overrideString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")

	overrideString(&c.Redis.Addr, "REDIS_ADDR")
	overrideString(&c.Redis.Password, "REDIS_PASSWORD")
	overrideString(&c.Redis.GeoKey, "REDIS_GEO_KEY")

	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = splitAndTrim(v)
	}
	overrideString(&c.Kafka.HeartbeatTopic, "KAFKA_HEARTBEAT_TOPIC")
	overrideString(&c.Kafka.ConsumerGroup, "KAFKA_CONSUMER_GROUP")

	overrideString(&c.JWT.SecretKey, "JWT_SECRET_KEY")

	overrideInt(&c.Services.DispatchServicePort, "DISPATCH_SERVICE_PORT")

	overrideDuration(&c.Dispatch.PerOfferTimeout, "DISPATCH_PER_OFFER_TIMEOUT")
	overrideDuration(&c.Dispatch.HeartbeatStaleness, "DISPATCH_HEARTBEAT_STALENESS")
	overrideInt(&c.Dispatch.MatchRetries, "DISPATCH_MATCH_RETRIES")
	overrideDuration(&c.Dispatch.RetryBackoff, "DISPATCH_RETRY_BACKOFF")

	overrideString(&c.ETA.OSRMEndpoint, "ETA_OSRM_ENDPOINT")
}

// applyDefaults sets safe defaults for unset fields.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = "localhost"
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = 5672
	}

	if c.Redis.GeoKey == "" {
		c.Redis.GeoKey = "dispatch:drivers"
	}

	if c.Kafka.HeartbeatTopic == "" {
		c.Kafka.HeartbeatTopic = "driver-heartbeats"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "dispatch-ingest"
	}

	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 2 * time.Hour
	}

	if c.Services.DispatchServicePort == 0 {
		c.Services.DispatchServicePort = 3000
	}

	if c.Dispatch.PerOfferTimeout == 0 {
		c.Dispatch.PerOfferTimeout = 20 * time.Second
	}
	if c.Dispatch.HeartbeatStaleness == 0 {
		c.Dispatch.HeartbeatStaleness = 60 * time.Second
	}
	if c.Dispatch.MatchRetries == 0 {
		c.Dispatch.MatchRetries = 3
	}
	if c.Dispatch.RetryBackoff == 0 {
		c.Dispatch.RetryBackoff = 10 * time.Second
	}
	if c.Dispatch.SearchRadiusKM == 0 {
		c.Dispatch.SearchRadiusKM = 5.0
	}
	if c.Dispatch.MaxCandidates == 0 {
		c.Dispatch.MaxCandidates = 10
	}

	if c.ETA.CacheTTL == 0 {
		c.ETA.CacheTTL = 30 * time.Second
	}
	if c.ETA.DefaultSpeedKMH == 0 {
		c.ETA.DefaultSpeedKMH = 24.0
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.database is required")
	}

	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}

	if c.JWT.SecretKey == "" {
		problems = append(problems, "jwt.secret_key is required")
	}

	if c.Services.DispatchServicePort <= 0 || c.Services.DispatchServicePort > 65535 {
		problems = append(problems, "services.dispatch_service must be in 1..65535")
	}

	if c.Dispatch.MatchRetries < 1 {
		problems = append(problems, "dispatch.match_retries must be >= 1")
	}
	if c.Dispatch.PerOfferTimeout < time.Second {
		problems = append(problems, "dispatch.per_offer_timeout must be at least 1s")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ----- env override helpers -----

func overrideString(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func overrideInt(target *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func overrideDuration(target *time.Duration, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
