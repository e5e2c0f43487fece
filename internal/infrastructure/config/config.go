package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Voice     VoiceConfig
	Providers []ProviderConfig
	NATS      NATSConfig
	Storage   StorageConfig
	Pricing   PricingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	// RateLimit is the number of narration requests an account may make per RateWindow; 0 disables
	RateLimit  int
	RateWindow time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces and metrics
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
	LogsEnabled       bool // Bridge zap entries to the OTLP logs pipeline
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. "http://pyroscope:4040"
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileMutex      bool
	ProfileBlock      bool
	SpanProfiles      bool // label CPU samples with the active span id
}

// VoiceConfig holds quota, voice access and failover settings
type VoiceConfig struct {
	FreeMonthlyLimit        int64
	PremiumMonthlyLimit     int64
	LockableSlots           int
	DefaultFreeVoice        string // any identifier shape
	Keys                    map[string]string
	ProviderOrder           []string
	PreferredProvider       string
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	MaxParagraphs           int
	SynthesisConcurrency    int
	CatalogCacheTTL         time.Duration
}

// ProviderConfig holds one speech vendor's endpoint settings
type ProviderConfig struct {
	Name          string
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	Format        string // mp3 or wav
	MaxAudioBytes int64  // cap on one synthesized response body
}

// NATSConfig holds usage event streaming settings
type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

// StorageConfig holds audio storage settings
type StorageConfig struct {
	Enabled      bool
	Backend      string // s3 or nats
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	PresignTTL   time.Duration
	PublicURL    string // optional CDN base URL; presigned URLs are used when empty
}

// PricingConfig holds estimated vendor cost per unit of each metered resource
type PricingConfig struct {
	Synthesis decimal.Decimal
	StoryGen  decimal.Decimal
	ImageGen  decimal.Decimal
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORYVOICE_ prefix (e.g., STORYVOICE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Zero is a meaningful value for these, so they cannot use applyDefaults
	v.SetDefault("voice.lockable_slots", 1)
	v.SetDefault("redis.enabled", true)

	v.SetEnvPrefix("STORYVOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	pricing, err := loadPricing(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cache_ttl"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			RateLimit:        v.GetInt("http.rate_limit"),
			RateWindow:       v.GetDuration("http.rate_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			ProfileMutex:      v.GetBool("profiling.profile_mutex"),
			ProfileBlock:      v.GetBool("profiling.profile_block"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
		Voice: VoiceConfig{
			FreeMonthlyLimit:        v.GetInt64("voice.free_monthly_limit"),
			PremiumMonthlyLimit:     v.GetInt64("voice.premium_monthly_limit"),
			LockableSlots:           v.GetInt("voice.lockable_slots"),
			DefaultFreeVoice:        v.GetString("voice.default_free_voice"),
			Keys:                    v.GetStringMapString("voice.keys"),
			ProviderOrder:           v.GetStringSlice("voice.provider_order"),
			PreferredProvider:       v.GetString("voice.preferred_provider"),
			BreakerFailureThreshold: v.GetInt("voice.breaker_failure_threshold"),
			BreakerCooldown:         v.GetDuration("voice.breaker_cooldown"),
			MaxParagraphs:           v.GetInt("voice.max_paragraphs"),
			SynthesisConcurrency:    v.GetInt("voice.synthesis_concurrency"),
			CatalogCacheTTL:         v.GetDuration("voice.catalog_cache_ttl"),
		},
		NATS: NATSConfig{
			Enabled: v.GetBool("nats.enabled"),
			URL:     v.GetString("nats.url"),
			Subject: v.GetString("nats.subject"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Backend:      v.GetString("storage.backend"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			PresignTTL:   v.GetDuration("storage.presign_ttl"),
			PublicURL:    v.GetString("storage.public_url"),
		},
		Pricing: pricing,
	}

	applyDefaults(cfg)

	// Providers are read after defaults so the default order names them
	for _, name := range cfg.Voice.ProviderOrder {
		key := "providers." + name
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:       name,
			BaseURL:    v.GetString(key + ".base_url"),
			APIKey:     v.GetString(key + ".api_key"),
			Timeout:    v.GetDuration(key + ".timeout"),
			MaxRetries: v.GetInt(key + ".max_retries"),
			Format:     v.GetString(key + ".format"),

			MaxAudioBytes: v.GetInt64(key + ".max_audio_bytes"),
		})
	}
	applyProviderDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPricing(v *viper.Viper) (PricingConfig, error) {
	parse := func(key string) (decimal.Decimal, error) {
		raw := v.GetString(key)
		if raw == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s must be a decimal number: %w", key, err)
		}
		return d, nil
	}

	var (
		p   PricingConfig
		err error
	)
	if p.Synthesis, err = parse("pricing.synthesis"); err != nil {
		return p, err
	}
	if p.StoryGen, err = parse("pricing.story_gen"); err != nil {
		return p, err
	}
	if p.ImageGen, err = parse("pricing.image_gen"); err != nil {
		return p, err
	}
	return p, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storyvoice-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storyvoice"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = 10 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "storyvoice-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Batch narration calls vendors once per paragraph
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	// CORS origins are intentionally not given a default fallback to "*".
	if cfg.HTTP.RateWindow == 0 {
		cfg.HTTP.RateWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "storyvoice-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
	if cfg.Profiling.ServerAddress == "" {
		cfg.Profiling.ServerAddress = "http://localhost:4040"
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}

	// Voice defaults
	if cfg.Voice.FreeMonthlyLimit == 0 {
		cfg.Voice.FreeMonthlyLimit = 2
	}
	if cfg.Voice.PremiumMonthlyLimit == 0 {
		cfg.Voice.PremiumMonthlyLimit = 20
	}
	if len(cfg.Voice.ProviderOrder) == 0 {
		cfg.Voice.ProviderOrder = []string{"elevenlabs", "openai", "google"}
	}
	if cfg.Voice.BreakerFailureThreshold == 0 {
		cfg.Voice.BreakerFailureThreshold = 3
	}
	if cfg.Voice.BreakerCooldown == 0 {
		cfg.Voice.BreakerCooldown = 30 * time.Second
	}
	if cfg.Voice.MaxParagraphs == 0 {
		cfg.Voice.MaxParagraphs = 30
	}
	if cfg.Voice.SynthesisConcurrency == 0 {
		cfg.Voice.SynthesisConcurrency = 4
	}
	if cfg.Voice.CatalogCacheTTL == 0 {
		cfg.Voice.CatalogCacheTTL = 5 * time.Minute
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "storyvoice.usage.tracked"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "s3"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "storyvoice-audio"
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = time.Hour
	}
}

// DefaultMaxAudioBytes bounds a vendor response when no per-provider limit is set
const DefaultMaxAudioBytes = 10 << 20 // 10MB

func applyProviderDefaults(cfg *Config) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Timeout == 0 {
			p.Timeout = 20 * time.Second
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = 1
		}
		if p.Format == "" {
			p.Format = "mp3"
		}
		if p.MaxAudioBytes == 0 {
			p.MaxAudioBytes = DefaultMaxAudioBytes
		}
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Voice.FreeMonthlyLimit < 0 || c.Voice.PremiumMonthlyLimit < 0 {
		return fmt.Errorf("voice monthly limits cannot be negative")
	}
	if c.Voice.FreeMonthlyLimit > c.Voice.PremiumMonthlyLimit {
		return fmt.Errorf("voice.free_monthly_limit (%d) cannot exceed voice.premium_monthly_limit (%d)",
			c.Voice.FreeMonthlyLimit, c.Voice.PremiumMonthlyLimit)
	}
	if c.Voice.LockableSlots < 0 || c.Voice.LockableSlots > 1 {
		return fmt.Errorf("voice.lockable_slots must be 0 or 1, got %d", c.Voice.LockableSlots)
	}
	if c.Storage.Backend != "s3" && c.Storage.Backend != "nats" {
		return fmt.Errorf("storage.backend must be s3 or nats, got %q", c.Storage.Backend)
	}
	if c.Voice.BreakerFailureThreshold < 1 {
		return fmt.Errorf("voice.breaker_failure_threshold must be at least 1")
	}
	if c.Voice.BreakerCooldown < 0 {
		return fmt.Errorf("voice.breaker_cooldown cannot be negative")
	}
	for _, p := range c.Providers {
		if p.MaxAudioBytes < 0 {
			return fmt.Errorf("providers.%s.max_audio_bytes cannot be negative", p.Name)
		}
	}
	if c.Voice.PreferredProvider != "" {
		found := false
		for _, name := range c.Voice.ProviderOrder {
			if name == c.Voice.PreferredProvider {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("voice.preferred_provider %q is not in voice.provider_order", c.Voice.PreferredProvider)
		}
	}
	for _, p := range c.Pricing.all() {
		if p.IsNegative() {
			return fmt.Errorf("pricing values cannot be negative")
		}
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		for _, p := range c.Providers {
			if p.BaseURL == "" {
				return fmt.Errorf("providers.%s.base_url is required in production", p.Name)
			}
		}
		if !c.Storage.Enabled {
			return fmt.Errorf("storage must be enabled in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

func (p PricingConfig) all() []decimal.Decimal {
	return []decimal.Decimal{p.Synthesis, p.StoryGen, p.ImageGen}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
