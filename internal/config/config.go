package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const envPrefix = "clinic"

type Config struct {
	Server     ServerConfig     `mapstructure:"server" split_words:"true"`
	Database   DatabaseConfig   `mapstructure:"database" split_words:"true"`
	Redis      RedisConfig      `mapstructure:"redis" split_words:"true"`
	Cache      CacheConfig      `mapstructure:"cache" split_words:"true"`
	Log        LogConfig        `mapstructure:"log" split_words:"true"`
	Tracing    TracingConfig    `mapstructure:"tracing" split_words:"true"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" split_words:"true"`
	Scheduling SchedulingConfig `mapstructure:"scheduling" split_words:"true"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" split_words:"true"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	Mode            string        `mapstructure:"mode" split_words:"true"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" split_words:"true"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" split_words:"true"`
	Port            int           `mapstructure:"port" split_words:"true"`
	User            string        `mapstructure:"user" split_words:"true"`
	Password        string        `mapstructure:"password" split_words:"true"`
	Name            string        `mapstructure:"name" split_words:"true"`
	SSLMode         string        `mapstructure:"sslmode" split_words:"true"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
}

// DSN builds a lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig is optional; an empty URL disables the distributed lock and event publishing.
type RedisConfig struct {
	URL           string        `mapstructure:"url" split_words:"true"`
	PoolSize      int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" split_words:"true"`
	MaxRetries    int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	EventsChannel string        `mapstructure:"events_channel" split_words:"true"`
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

type CacheConfig struct {
	DoctorTTL       time.Duration `mapstructure:"doctor_ttl" split_words:"true"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type LogConfig struct {
	Level string `mapstructure:"level" split_words:"true"`
	JSON  bool   `mapstructure:"json" split_words:"true"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" split_words:"true"`
	Endpoint    string  `mapstructure:"endpoint" split_words:"true"`
	ServiceName string  `mapstructure:"service_name" split_words:"true"`
	SampleRate  float64 `mapstructure:"sample_rate" split_words:"true"`
	Insecure    bool    `mapstructure:"insecure" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" split_words:"true"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst" split_words:"true"`
}

type SchedulingConfig struct {
	LockTTL         time.Duration `mapstructure:"lock_ttl" split_words:"true"`
	LockWait        time.Duration `mapstructure:"lock_wait" split_words:"true"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" split_words:"true"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" split_words:"true"`
	MetricsPrefix   string        `mapstructure:"metrics_prefix" split_words:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "clinic")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.events_channel", "clinic.appointments")

	v.SetDefault("cache.doctor_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("log.level", "info")

	v.SetDefault("tracing.service_name", "clinic-api")
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("scheduling.lock_ttl", 10*time.Second)
	v.SetDefault("scheduling.lock_wait", 3*time.Second)
	v.SetDefault("scheduling.breaker_timeout", 30*time.Second)
	v.SetDefault("scheduling.breaker_failures", 5)
	v.SetDefault("scheduling.metrics_prefix", "clinic")
}

// Load reads config.yml (or the file at path) and overlays CLINIC_* environment variables.
// Variable names come from the field path, e.g. CLINIC_DATABASE_SSL_MODE; unprefixed
// variables such as USER or PORT are never read.
// A missing config file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return &cfg, nil
}
