package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Monitor     MonitorConfig
	SchemeCache SchemeCacheConfig
	Delivery    DeliveryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MonitorConfig tunes interactive monitor sessions.
type MonitorConfig struct {
	FlushDelay      time.Duration
	SessionIdleTTL  time.Duration
	SweepInterval   time.Duration
	DefaultLocale   string
	DefaultEstimate float64
	DefaultGoal     int
}

// SchemeCacheConfig controls caching of course grading schemes in Redis.
type SchemeCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// DeliveryConfig sizes the background queue that persists flushed changes.
type DeliveryConfig struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		URL:      v.GetString("REDIS_URL"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	estimate := v.GetFloat64("MONITOR_DEFAULT_ESTIMATE")
	if estimate < 0 || estimate > 100 {
		estimate = 70
	}
	goal := v.GetInt("MONITOR_DEFAULT_GOAL")
	if goal < 0 || goal > 4 {
		goal = 3
	}
	cfg.Monitor = MonitorConfig{
		FlushDelay:      parseDuration(v.GetString("MONITOR_FLUSH_DELAY"), 2*time.Minute),
		SessionIdleTTL:  parseDuration(v.GetString("MONITOR_SESSION_IDLE_TTL"), 30*time.Minute),
		SweepInterval:   parseDuration(v.GetString("MONITOR_SWEEP_INTERVAL"), time.Minute),
		DefaultLocale:   v.GetString("MONITOR_DEFAULT_LOCALE"),
		DefaultEstimate: estimate,
		DefaultGoal:     goal,
	}

	cfg.SchemeCache = SchemeCacheConfig{
		Enabled: v.GetBool("SCHEME_CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("SCHEME_CACHE_TTL"), 10*time.Minute),
	}

	workers := v.GetInt("DELIVERY_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	buffer := v.GetInt("DELIVERY_BUFFER")
	if buffer <= 0 {
		buffer = 64
	}
	cfg.Delivery = DeliveryConfig{
		Workers: workers,
		Buffer:  buffer,
		Timeout: parseDuration(v.GetString("DELIVERY_TIMEOUT"), 10*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "grademonitor")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MONITOR_FLUSH_DELAY", "2m")
	v.SetDefault("MONITOR_SESSION_IDLE_TTL", "30m")
	v.SetDefault("MONITOR_SWEEP_INTERVAL", "1m")
	v.SetDefault("MONITOR_DEFAULT_LOCALE", "en")
	v.SetDefault("MONITOR_DEFAULT_ESTIMATE", 70)
	v.SetDefault("MONITOR_DEFAULT_GOAL", 3)

	v.SetDefault("SCHEME_CACHE_ENABLED", true)
	v.SetDefault("SCHEME_CACHE_TTL", "10m")

	v.SetDefault("DELIVERY_WORKERS", 1)
	v.SetDefault("DELIVERY_BUFFER", 64)
	v.SetDefault("DELIVERY_TIMEOUT", "10s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
