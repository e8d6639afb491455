// Package container provides dependency injection and lifecycle management
// for the river-voucher services following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Backend modes
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Backend selects the authoritative requisition store
	Backend BackendConfig

	// Auth configuration for session tokens
	Auth AuthConfig

	// Storage configuration
	Storage StorageConfig

	// Ticket configuration for printable stubs
	Ticket TicketConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// SeedUsers creates the default accounts on an empty local store
	SeedUsers bool
}

// BackendConfig holds the requisition backend settings.
type BackendConfig struct {
	// Mode is BackendRemote or BackendLocal
	Mode string

	// BaseURL of the municipal REST API
	BaseURL string

	// Timeout for API calls
	Timeout time.Duration

	// DetailSegments are the URL path segments that precede an id in scanned links
	DetailSegments []string

	// ServiceToken authenticates background reads such as the stub archive
	ServiceToken string
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ArchiveDir is the base directory for archived stubs
	ArchiveDir string

	// ArchiveApproved stores the stub of every approved requisition
	ArchiveApproved bool
}

// TicketConfig holds printable stub and report settings.
type TicketConfig struct {
	Issuer        string
	PublicBaseURL string
	QRSize        int
	Location      *time.Location
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// SnapshotExpiry is how long lifecycle snapshots stay cached
	SnapshotExpiry time.Duration

	// PruneInterval is how often expired snapshots are dropped
	PruneInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/requisicoes.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
			SeedUsers:       true,
		},
		Backend: BackendConfig{
			Mode:           BackendRemote,
			Timeout:        15 * time.Second,
			DetailSegments: []string{"canhoto", "requisicao"},
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		Storage: StorageConfig{
			ArchiveDir: "data/canhotos",
		},
		Ticket: TicketConfig{
			Issuer:   "Prefeitura Municipal",
			QRSize:   256,
			Location: time.UTC,
		},
		Worker: WorkerConfig{
			SnapshotExpiry: 10 * time.Minute,
			PruneInterval:  time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case BackendRemote:
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required")
		}
	case BackendLocal:
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Storage.ArchiveApproved && c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir is required")
	}

	return nil
}
