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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Planner    PlannerConfig
	Enrichment EnrichmentConfig
	PlanCache  PlanCacheConfig
	History    HistoryConfig
	Sharing    SharingConfig
	Batch      BatchConfig
	Tracing    TracingConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	RunMigrations bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used by the auth platform to sign access tokens.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PlannerConfig carries the scheduling policy handed to the planner engine.
type PlannerConfig struct {
	DayStart          string
	DayEnd            string
	MinSlotMinutes    int
	MaxSessionMinutes int
	LightDay          string
	RevisionLabel     string
	Timezone          string
	DefaultTip        string
}

// EnrichmentConfig configures the optional generative-text plan enrichment.
type EnrichmentConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	TipFallback bool
}

// PlanCacheConfig toggles redis caching of generated plans.
type PlanCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// HistoryConfig governs asynchronous persistence of generated plans.
type HistoryConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
}

// SharingConfig controls signed share links for stored plans.
type SharingConfig struct {
	SigningSecret string
	LinkTTL       time.Duration
}

// BatchConfig bounds the staff batch generation endpoint.
type BatchConfig struct {
	MaxStudents int
	Concurrency int
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		RunMigrations: v.GetBool("RUN_MIGRATIONS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Planner = PlannerConfig{
		DayStart:          v.GetString("PLANNER_DAY_START"),
		DayEnd:            v.GetString("PLANNER_DAY_END"),
		MinSlotMinutes:    v.GetInt("PLANNER_MIN_SLOT_MINUTES"),
		MaxSessionMinutes: v.GetInt("PLANNER_MAX_SESSION_MINUTES"),
		LightDay:          v.GetString("PLANNER_LIGHT_DAY"),
		RevisionLabel:     v.GetString("PLANNER_REVISION_LABEL"),
		Timezone:          v.GetString("PLANNER_TIMEZONE"),
		DefaultTip:        v.GetString("PLANNER_DEFAULT_TIP"),
	}

	cfg.Enrichment = EnrichmentConfig{
		Enabled:     v.GetBool("ENABLE_ENRICHMENT"),
		BaseURL:     v.GetString("AI_BASE_URL"),
		APIKey:      v.GetString("AI_API_KEY"),
		Model:       v.GetString("AI_MODEL"),
		Timeout:     parseDuration(v.GetString("ENRICHMENT_TIMEOUT"), 20*time.Second),
		TipFallback: v.GetBool("ENRICHMENT_TIP_FALLBACK"),
	}

	cfg.PlanCache = PlanCacheConfig{
		Enabled: v.GetBool("ENABLE_PLAN_CACHE"),
		TTL:     parseDuration(v.GetString("PLAN_CACHE_TTL"), 6*time.Hour),
	}

	cfg.History = HistoryConfig{
		Enabled:           v.GetBool("ENABLE_PLAN_HISTORY"),
		WorkerConcurrency: v.GetInt("PLAN_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("PLAN_WORKER_RETRIES"),
	}

	cfg.Sharing = SharingConfig{
		SigningSecret: v.GetString("SHARE_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("SHARE_LINK_TTL"), 7*24*time.Hour),
	}

	cfg.Batch = BatchConfig{
		MaxStudents: v.GetInt("BATCH_MAX_STUDENTS"),
		Concurrency: v.GetInt("BATCH_CONCURRENCY"),
	}

	cfg.Tracing = TracingConfig{
		Enabled:      v.GetBool("OTEL_ENABLED"),
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:     v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio:  clampRatio(v.GetFloat64("OTEL_SAMPLER_RATIO")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smart_plan")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("RUN_MIGRATIONS", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLANNER_DAY_START", "06:00")
	v.SetDefault("PLANNER_DAY_END", "22:00")
	v.SetDefault("PLANNER_MIN_SLOT_MINUTES", 30)
	v.SetDefault("PLANNER_MAX_SESSION_MINUTES", 90)
	v.SetDefault("PLANNER_LIGHT_DAY", "Saturday")
	v.SetDefault("PLANNER_REVISION_LABEL", "Revision")
	v.SetDefault("PLANNER_TIMEZONE", "Africa/Cairo")
	v.SetDefault("PLANNER_DEFAULT_TIP", "")

	v.SetDefault("ENABLE_ENRICHMENT", false)
	v.SetDefault("AI_BASE_URL", "https://api.openai.com")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_MODEL", "gpt-4o-mini")
	v.SetDefault("ENRICHMENT_TIMEOUT", "20s")
	v.SetDefault("ENRICHMENT_TIP_FALLBACK", true)

	v.SetDefault("ENABLE_PLAN_CACHE", false)
	v.SetDefault("PLAN_CACHE_TTL", "6h")

	v.SetDefault("ENABLE_PLAN_HISTORY", false)
	v.SetDefault("PLAN_WORKER_CONCURRENCY", 2)
	v.SetDefault("PLAN_WORKER_RETRIES", 3)

	v.SetDefault("SHARE_SIGNING_SECRET", "dev_share_secret")
	v.SetDefault("SHARE_LINK_TTL", "168h")

	v.SetDefault("BATCH_MAX_STUDENTS", 50)
	v.SetDefault("BATCH_CONCURRENCY", 8)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "smart-plan-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

// isMissingFile reports a missing explicit config file, which viper surfaces as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
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
