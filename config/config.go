// Package config loads the service configuration. Sources are layered from
// lowest to highest precedence:
//  1. defaults (New)
//  2. a .env file in the working directory, if present
//  3. a YAML file named by VALORES_CONFIG
//  4. environment variables with the VALORES_ prefix, "__" separating
//     nested keys (VALORES_DATABASE__URL -> database.url,
//     VALORES_FEATURES__REDIS_RELAY -> features.redis_relay)
//
// DATABASE_URL and REDIS_URL are honoured as well.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/valores-hub/nominations/internal/domain/recognition"
	"github.com/valores-hub/nominations/internal/domain/value"
	"github.com/valores-hub/nominations/pkg/timeutil"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

const (
	envPrefix  = "VALORES_"
	fileEnvKey = "VALORES_CONFIG"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig           `koanf:"app"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	HTTP          HTTPConfig          `koanf:"http"`
	Scheduler     SchedulerConfig     `koanf:"scheduler"`
	Recognition   RecognitionConfig   `koanf:"recognition"`
	Features      FeaturesConfig      `koanf:"features"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string      `koanf:"name" validate:"required"`
	Environment Environment `koanf:"environment" validate:"oneof=development staging production"`
	Version     string      `koanf:"version"`

	// Timezone of the school; event times are entered as wall-clock here.
	Timezone string `koanf:"timezone" validate:"required"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	location *time.Location
}

// Location returns the loaded timezone.
func (a AppConfig) Location() *time.Location {
	if a.location == nil {
		return time.UTC
	}
	return a.location
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL in
// development selects the in-memory store.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	QueryTimeout    time.Duration `koanf:"query_timeout" validate:"gt=0"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"gte=0,lte=65535"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
	PoolSize int    `koanf:"pool_size" validate:"gte=0"`

	// ActiveCycleTTL bounds how long the active cycle stays cached.
	ActiveCycleTTL time.Duration `koanf:"active_cycle_ttl"`

	// Channel carries domain events between processes.
	Channel string `koanf:"channel"`

	Disabled bool `koanf:"disabled"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled bool `koanf:"enabled"`

	// SweepInterval is used when SweepCron is empty.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	SweepCron     string        `koanf:"sweep_cron"`

	JobTimeout time.Duration `koanf:"job_timeout" validate:"gt=0"`
}

// RecognitionConfig holds the excellence tier rules.
type RecognitionConfig struct {
	Threshold           int      `koanf:"threshold" validate:"gte=1"`
	ExcellenceValueName string   `koanf:"excellence_value_name" validate:"required"`
	Policy              string   `koanf:"policy" validate:"oneof=first_n all"`
	DefaultValues       []string `koanf:"default_values" validate:"dive,required"`
}

// Rules converts the section into recognition rules.
func (r RecognitionConfig) Rules() recognition.Rules {
	return recognition.Rules{
		Threshold:      r.Threshold,
		ExcellenceName: r.ExcellenceValueName,
		Policy:         recognition.Policy(r.Policy),
	}
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string `koanf:"log_format" validate:"oneof=json console"`
	MetricsEnabled bool   `koanf:"metrics_enabled"`
	TracingEnabled bool   `koanf:"tracing_enabled"`
}

// New returns the defaults.
func New() *Config {
	rules := recognition.DefaultRules()
	return &Config{
		App: AppConfig{
			Name:            "valores-nominations",
			Environment:     EnvDevelopment,
			Version:         "0.1.0",
			Timezone:        timeutil.DefaultZone,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
			QueryTimeout:    30 * time.Second,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{
			Host:           "localhost",
			Port:           6379,
			PoolSize:       10,
			ActiveCycleTTL: 5 * time.Minute,
			Channel:        "valores:events",
			Disabled:       true,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			SweepInterval: time.Minute,
			JobTimeout:    2 * time.Minute,
		},
		Recognition: RecognitionConfig{
			Threshold:           rules.Threshold,
			ExcellenceValueName: rules.ExcellenceName,
			Policy:              string(rules.Policy),
			DefaultValues:       append([]string(nil), value.DefaultSeed...),
		},
		Features: FeaturesConfig{
			RecognitionBoard: true,
			AutoSeedValues:   true,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// Load builds a Config from every source.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(os.Getenv(fileEnvKey))
}

// LoadFrom layers defaults, the YAML file at path (if non-empty) and the
// environment.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyLegacyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyLegacyEnv honours the unprefixed variables set by hosting platforms.
func applyLegacyEnv(cfg *Config) {
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Redis.URL == "" {
		if url := os.Getenv("REDIS_URL"); url != "" {
			cfg.Redis.URL = url
			cfg.Redis.Disabled = false
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and loads the timezone.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	loc, err := timeutil.LoadZone(c.App.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("app.timezone: %v", err))
	} else {
		c.App.location = loc
	}

	if c.App.Environment == EnvProduction && c.Database.URL == "" {
		errs = append(errs, "database.url is required in production")
	}
	if !c.Redis.Disabled && c.Redis.URL == "" && c.Redis.Host == "" {
		errs = append(errs, "redis.url or redis.host is required when redis is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// UseMemoryStore reports whether the in-memory store should back the
// service.
func (c *Config) UseMemoryStore() bool {
	return c.Database.URL == "" && c.App.Environment != EnvProduction
}
