package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/arcblog-backend/internal/data/db"
	"github.com/yungbote/arcblog-backend/internal/observability"
	"github.com/yungbote/arcblog-backend/internal/platform/envutil"
	"github.com/yungbote/arcblog-backend/internal/platform/gcp"
	"github.com/yungbote/arcblog-backend/internal/services"
)

type AuthoringConfig struct {
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	AutosaveDelay   time.Duration `yaml:"autosave_delay"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	IdleTTL         time.Duration `yaml:"idle_ttl"`
}

type LLMConfig struct {
	MaxRetries  int               `yaml:"max_retries"`
	HTTPTimeout time.Duration     `yaml:"http_timeout"`
	BaseURLs    map[string]string `yaml:"base_urls"`
}

type StorageConfig struct {
	Mode          string      `yaml:"mode"`
	EmulatorHost  string      `yaml:"emulator_host"`
	PublicBaseURL string      `yaml:"public_base_url"`
	Buckets       gcp.Buckets `yaml:"buckets"`
}

func (s StorageConfig) objectStorage() gcp.ObjectStorageConfig {
	return gcp.ObjectStorageConfig{
		Mode:          gcp.ObjectStorageMode(strings.ToLower(strings.TrimSpace(s.Mode))),
		EmulatorHost:  strings.TrimSpace(s.EmulatorHost),
		PublicBaseURL: strings.TrimSpace(s.PublicBaseURL),
	}
}

type Config struct {
	Port         string   `yaml:"port"`
	LogMode      string   `yaml:"log_mode"`
	RedisAddr    string   `yaml:"redis_addr"`
	JWTSecretKey string   `yaml:"jwt_secret_key"`
	JWTIssuer    string   `yaml:"jwt_issuer"`
	AllowOrigins []string `yaml:"allow_origins"`

	DB                 db.Config                   `yaml:"db"`
	Authoring          AuthoringConfig             `yaml:"authoring"`
	LLM                LLMConfig                   `yaml:"llm"`
	Images             services.ImageConfig        `yaml:"images"`
	Logo               services.LogoConfig         `yaml:"logo"`
	InterestVocabulary []string                    `yaml:"interest_vocabulary"`
	Storage            StorageConfig               `yaml:"storage"`
	Otel               observability.OtelConfig    `yaml:"otel"`
	Metrics            observability.MetricsConfig `yaml:"metrics"`
}

func defaultConfig() Config {
	return Config{
		Port:    "8080",
		LogMode: "development",
		DB: db.Config{
			Driver: db.DriverPostgres,
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			Name:   "arcblog",
		},
		Authoring: AuthoringConfig{
			ProviderTimeout: 45 * time.Second,
			AutosaveDelay:   time.Second,
			LockTTL:         2 * time.Minute,
			IdleTTL:         30 * time.Minute,
		},
		LLM:     LLMConfig{MaxRetries: 2, HTTPTimeout: 120 * time.Second},
		Storage: StorageConfig{Mode: string(gcp.ObjectStorageModeGCS)},
		Otel:    observability.OtelConfig{ServiceName: "arcblog", SampleRatio: 1},
	}
}

// LoadConfig reads the optional YAML file named by ARCBLOG_CONFIG, then
// applies environment overrides.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("ARCBLOG_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.JWTIssuer = envutil.String("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AllowOrigins = envutil.CSV("CORS_ALLOW_ORIGINS", cfg.AllowOrigins)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.Authoring.ProviderTimeout = envutil.Seconds("PROVIDER_TIMEOUT_SECONDS", cfg.Authoring.ProviderTimeout)
	cfg.Authoring.AutosaveDelay = envutil.Millis("AUTOSAVE_DELAY_MS", cfg.Authoring.AutosaveDelay)
	cfg.Authoring.LockTTL = envutil.Seconds("GENERATION_LOCK_TTL_SECONDS", cfg.Authoring.LockTTL)
	cfg.Authoring.IdleTTL = envutil.Seconds("WORKFLOW_IDLE_TTL_SECONDS", cfg.Authoring.IdleTTL)

	cfg.LLM.MaxRetries = envutil.Int("PROVIDER_MAX_RETRIES", cfg.LLM.MaxRetries)
	cfg.LLM.HTTPTimeout = envutil.Seconds("PROVIDER_HTTP_TIMEOUT_SECONDS", cfg.LLM.HTTPTimeout)

	cfg.Images.MaxBytes = int64(envutil.Int("IMAGE_MAX_BYTES", int(cfg.Images.MaxBytes)))
	cfg.Images.MaxDimension = envutil.Int("IMAGE_MAX_DIMENSION", cfg.Images.MaxDimension)
	cfg.InterestVocabulary = envutil.CSV("INTEREST_VOCABULARY", cfg.InterestVocabulary)
	cfg.Logo.FontPath = envutil.String("LOGO_FONT", cfg.Logo.FontPath)
	cfg.Logo.ColorsJSONPath = envutil.String("LOGO_COLORS_JSON", cfg.Logo.ColorsJSONPath)

	cfg.Storage.Mode = envutil.String("OBJECT_STORAGE_MODE", cfg.Storage.Mode)
	cfg.Storage.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Storage.EmulatorHost)
	cfg.Storage.PublicBaseURL = envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.Buckets.PostImage.Name = envutil.String("POST_IMAGE_GCS_BUCKET_NAME", cfg.Storage.Buckets.PostImage.Name)
	cfg.Storage.Buckets.PostImage.CDNDomain = envutil.String("POST_IMAGE_CDN_DOMAIN", cfg.Storage.Buckets.PostImage.CDNDomain)
	cfg.Storage.Buckets.Logo.Name = envutil.String("LOGO_GCS_BUCKET_NAME", cfg.Storage.Buckets.Logo.Name)
	cfg.Storage.Buckets.Logo.CDNDomain = envutil.String("LOGO_CDN_DOMAIN", cfg.Storage.Buckets.Logo.CDNDomain)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	if h := observability.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); len(h) > 0 {
		cfg.Otel.Headers = h
	}
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if err := gcp.ValidateObjectStorageConfig(c.Storage.objectStorage()); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address of the API server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
