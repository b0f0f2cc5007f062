package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Vault      VaultConfig
	Automation AutomationConfig
	Platforms  PlatformsConfig
	Taxonomy   TaxonomyConfig
	Telemetry  TelemetryConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for validating bearer tokens
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
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
}

// VaultConfig holds credential vault settings
type VaultConfig struct {
	// Backend selects the secret store implementation: awssm, s3, memory
	Backend string
	// Region is the AWS region for the awssm and s3 backends
	Region string
	// Endpoint overrides the AWS endpoint (localstack, MinIO)
	Endpoint string
	// AccessKey and SecretKey are static AWS credentials; empty means the
	// default credential chain
	AccessKey string
	SecretKey string
	// SecretPrefix namespaces secret names in the backing store
	SecretPrefix string
	// Bucket is the S3 bucket for the s3 backend
	Bucket string
	// EncryptionKey is the hex-encoded 32-byte key for the s3 backend's
	// client-side encryption
	EncryptionKey string
}

// AutomationConfig holds settings for the headless-login service used by
// marketplaces without a token API
type AutomationConfig struct {
	BaseURL      string
	ProbeTimeout time.Duration
	LoginTimeout time.Duration
}

// PlatformsConfig holds per-marketplace upstream settings
type PlatformsConfig struct {
	Ebay           EbayConfig
	BuySportsCards BSCConfig
	Sportlots      SportlotsConfig
	MySlabs        MySlabsConfig
	MyCardPost     MyCardPostConfig
}

// EbayConfig holds eBay Browse API settings
type EbayConfig struct {
	BaseURL        string
	AppToken       string
	MarketplaceID  string
	TimeoutSeconds int
}

// BSCConfig holds BuySportsCards API settings
type BSCConfig struct {
	BaseURL        string
	Origin         string
	TimeoutSeconds int
}

// SportlotsConfig holds Sportlots settings
type SportlotsConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// MySlabsConfig holds MySlabs API settings
type MySlabsConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// MyCardPostConfig holds MyCardPost settings
type MyCardPostConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// TaxonomyConfig holds selector option cache settings
type TaxonomyConfig struct {
	L1TTL     time.Duration
	L2TTL     time.Duration
	L1MaxSize int
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	ProfilingEnabled  bool
	ProfilingServer   string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CARDSTASH_ prefix (e.g., CARDSTASH_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("CARDSTASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
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
		},
		Vault: VaultConfig{
			Backend:       v.GetString("vault.backend"),
			Region:        v.GetString("vault.region"),
			Endpoint:      v.GetString("vault.endpoint"),
			AccessKey:     v.GetString("vault.access_key"),
			SecretKey:     v.GetString("vault.secret_key"),
			SecretPrefix:  v.GetString("vault.secret_prefix"),
			Bucket:        v.GetString("vault.bucket"),
			EncryptionKey: v.GetString("vault.encryption_key"),
		},
		Automation: AutomationConfig{
			BaseURL:      v.GetString("automation.base_url"),
			ProbeTimeout: v.GetDuration("automation.probe_timeout"),
			LoginTimeout: v.GetDuration("automation.login_timeout"),
		},
		Platforms: PlatformsConfig{
			Ebay: EbayConfig{
				BaseURL:        v.GetString("platforms.ebay.base_url"),
				AppToken:       v.GetString("platforms.ebay.app_token"),
				MarketplaceID:  v.GetString("platforms.ebay.marketplace_id"),
				TimeoutSeconds: v.GetInt("platforms.ebay.timeout_seconds"),
			},
			BuySportsCards: BSCConfig{
				BaseURL:        v.GetString("platforms.buysportscards.base_url"),
				Origin:         v.GetString("platforms.buysportscards.origin"),
				TimeoutSeconds: v.GetInt("platforms.buysportscards.timeout_seconds"),
			},
			Sportlots: SportlotsConfig{
				BaseURL:        v.GetString("platforms.sportlots.base_url"),
				TimeoutSeconds: v.GetInt("platforms.sportlots.timeout_seconds"),
			},
			MySlabs: MySlabsConfig{
				BaseURL:        v.GetString("platforms.myslabs.base_url"),
				TimeoutSeconds: v.GetInt("platforms.myslabs.timeout_seconds"),
			},
			MyCardPost: MyCardPostConfig{
				BaseURL:        v.GetString("platforms.mycardpost.base_url"),
				TimeoutSeconds: v.GetInt("platforms.mycardpost.timeout_seconds"),
			},
		},
		Taxonomy: TaxonomyConfig{
			L1TTL:     v.GetDuration("taxonomy.l1_ttl"),
			L2TTL:     v.GetDuration("taxonomy.l2_ttl"),
			L1MaxSize: v.GetInt("taxonomy.l1_max_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "cardstash-backend"
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
		cfg.Database.DBName = "cardstash"
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
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "cardstash-backend"
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
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
	if cfg.HTTP.WriteTimeout == 0 {
		// Search fan-out waits for the slowest upstream, so writes get a
		// longer budget than reads.
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB; search and vault payloads are small
	}
	// CORS origins intentionally have no "*" fallback. An empty list means
	// no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Vault.Backend == "" {
		cfg.Vault.Backend = "awssm"
	}
	if cfg.Vault.Region == "" {
		cfg.Vault.Region = "us-east-1"
	}
	if cfg.Vault.SecretPrefix == "" {
		cfg.Vault.SecretPrefix = "cardstash/vault"
	}
	if cfg.Automation.BaseURL == "" {
		cfg.Automation.BaseURL = "http://localhost:4000"
	}
	if cfg.Automation.ProbeTimeout == 0 {
		cfg.Automation.ProbeTimeout = 2 * time.Second
	}
	if cfg.Automation.LoginTimeout == 0 {
		cfg.Automation.LoginTimeout = 45 * time.Second
	}
	if cfg.Platforms.Ebay.BaseURL == "" {
		cfg.Platforms.Ebay.BaseURL = "https://api.ebay.com"
	}
	if cfg.Platforms.Ebay.MarketplaceID == "" {
		cfg.Platforms.Ebay.MarketplaceID = "EBAY_US"
	}
	if cfg.Platforms.Ebay.TimeoutSeconds == 0 {
		cfg.Platforms.Ebay.TimeoutSeconds = 30
	}
	if cfg.Platforms.BuySportsCards.BaseURL == "" {
		cfg.Platforms.BuySportsCards.BaseURL = "https://api-prod.buysportscards.com"
	}
	if cfg.Platforms.BuySportsCards.Origin == "" {
		cfg.Platforms.BuySportsCards.Origin = "https://www.buysportscards.com"
	}
	if cfg.Platforms.BuySportsCards.TimeoutSeconds == 0 {
		cfg.Platforms.BuySportsCards.TimeoutSeconds = 30
	}
	if cfg.Platforms.Sportlots.BaseURL == "" {
		cfg.Platforms.Sportlots.BaseURL = "https://www.sportlots.com"
	}
	if cfg.Platforms.Sportlots.TimeoutSeconds == 0 {
		cfg.Platforms.Sportlots.TimeoutSeconds = 30
	}
	if cfg.Platforms.MySlabs.BaseURL == "" {
		cfg.Platforms.MySlabs.BaseURL = "https://myslabs.com/api/v2"
	}
	if cfg.Platforms.MySlabs.TimeoutSeconds == 0 {
		cfg.Platforms.MySlabs.TimeoutSeconds = 30
	}
	if cfg.Platforms.MyCardPost.BaseURL == "" {
		cfg.Platforms.MyCardPost.BaseURL = "https://mycardpost.com"
	}
	if cfg.Platforms.MyCardPost.TimeoutSeconds == 0 {
		cfg.Platforms.MyCardPost.TimeoutSeconds = 30
	}
	if cfg.Taxonomy.L1TTL == 0 {
		cfg.Taxonomy.L1TTL = 5 * time.Minute
	}
	if cfg.Taxonomy.L2TTL == 0 {
		cfg.Taxonomy.L2TTL = time.Hour
	}
	if cfg.Taxonomy.L1MaxSize == 0 {
		cfg.Taxonomy.L1MaxSize = 1000
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "cardstash-backend"
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
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

	switch c.Vault.Backend {
	case "awssm", "s3", "memory":
	default:
		return fmt.Errorf("vault.backend must be one of awssm, s3, memory (got %q)", c.Vault.Backend)
	}
	if c.Vault.Backend == "s3" {
		if c.Vault.Bucket == "" {
			return fmt.Errorf("vault.bucket is required for the s3 backend")
		}
		if c.Vault.EncryptionKey == "" {
			return fmt.Errorf("vault.encryption_key is required for the s3 backend")
		}
	}

	// Production-specific validations
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
		if c.Vault.Backend == "memory" {
			return fmt.Errorf("vault.backend cannot be 'memory' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
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
