package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Backend modes
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ticket    TicketConfig    `mapstructure:"ticket"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the local store configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SeedUsers       bool          `mapstructure:"seed_users"`
}

// BackendConfig selects where requisitions live.
// In remote mode the municipal REST API is authoritative; local mode serves
// everything from the SQLite store.
type BackendConfig struct {
	Mode           string        `mapstructure:"mode"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	DetailSegments []string      `mapstructure:"detail_segments"`
	// ServiceToken authenticates background reads made outside an operator request
	ServiceToken   string        `mapstructure:"service_token"`
}

// AuthConfig holds session token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig holds the voucher archive settings
type StorageConfig struct {
	ArchiveDir      string `mapstructure:"archive_dir"`
	ArchiveApproved bool   `mapstructure:"archive_approved"`
}

// TicketConfig holds printable voucher settings
type TicketConfig struct {
	Issuer        string `mapstructure:"issuer"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	QRSize        int    `mapstructure:"qr_size"`
	Timezone      string `mapstructure:"timezone"`
}

// ScannerConfig holds boarding station settings
type ScannerConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Load loads configuration from file, .env and environment variables.
// A missing config file is not an error; defaults and the environment apply.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/requisicoes.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.seed_users", true)

	// Backend defaults
	v.SetDefault("backend.mode", BackendRemote)
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.detail_segments", []string{"canhoto", "requisicao"})

	// Auth defaults
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	// Storage defaults
	v.SetDefault("storage.archive_dir", "data/canhotos")
	v.SetDefault("storage.archive_approved", false)

	// Ticket defaults
	v.SetDefault("ticket.issuer", "Prefeitura Municipal")
	v.SetDefault("ticket.qr_size", 256)
	v.SetDefault("ticket.timezone", "America/Manaus")

	// Scanner defaults
	v.SetDefault("scanner.max_attempts", 3)
	v.SetDefault("scanner.backoff", 500*time.Millisecond)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "river-voucher")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive settings from environment
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("backend.base_url", "REQUISICOES_API_URL")
	_ = v.BindEnv("backend.mode", "BACKEND_MODE")
	_ = v.BindEnv("backend.service_token", "REQUISICOES_SERVICE_TOKEN")
	_ = v.BindEnv("ticket.public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.insecure", "OTEL_EXPORTER_OTLP_INSECURE")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendRemote:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required in remote mode")
		}
		if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
			return fmt.Errorf("backend.base_url is invalid: %w", err)
		}
	case BackendLocal:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required in local mode")
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", BackendRemote, BackendLocal, c.Backend.Mode)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Storage.ArchiveApproved && c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir is required when archive_approved is set")
	}
	if c.Ticket.PublicBaseURL == "" {
		return fmt.Errorf("ticket.public_base_url is required")
	}

	return nil
}

// Location returns the configured time zone, falling back to UTC
func (c TicketConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
