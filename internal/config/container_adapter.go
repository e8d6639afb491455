package config

import (
	"time"

	"github.com/garyjia/river-voucher/internal/container"
	httpserver "github.com/garyjia/river-voucher/internal/interfaces/http"
	"github.com/garyjia/river-voucher/internal/scanner"
	"github.com/garyjia/river-voucher/internal/telemetry"
	"github.com/garyjia/river-voucher/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			SeedUsers:       c.Database.SeedUsers,
		},
		Backend: container.BackendConfig{
			Mode:           c.Backend.Mode,
			BaseURL:        c.Backend.BaseURL,
			Timeout:        c.Backend.Timeout,
			DetailSegments: c.Backend.DetailSegments,
			ServiceToken:   c.Backend.ServiceToken,
		},
		Auth: container.AuthConfig{
			JWTSecret: c.Auth.JWTSecret,
			TokenTTL:  c.Auth.TokenTTL,
		},
		Storage: container.StorageConfig{
			ArchiveDir:      c.Storage.ArchiveDir,
			ArchiveApproved: c.Storage.ArchiveApproved,
		},
		Ticket: container.TicketConfig{
			Issuer:        c.Ticket.Issuer,
			PublicBaseURL: c.Ticket.PublicBaseURL,
			QRSize:        c.Ticket.QRSize,
			Location:      c.Ticket.Location(),
		},
		Worker: container.WorkerConfig{
			SnapshotExpiry: 10 * time.Minute,
			PruneInterval:  time.Minute,
		},
	}
}

// ToServerConfig converts the server section for the HTTP adapter
func (c *Config) ToServerConfig() httpserver.ServerConfig {
	return httpserver.ServerConfig{
		Host:         c.Server.Host,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		ServiceName:  c.Telemetry.ServiceName,
	}
}

// ToLoggerConfig converts the logger section
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    c.Telemetry.ServiceName,
	}
}

// ToTelemetryConfig converts the telemetry section
func (c *Config) ToTelemetryConfig() telemetry.Config {
	return telemetry.Config{
		ServiceName:  c.Telemetry.ServiceName,
		OTLPEndpoint: c.Telemetry.OTLPEndpoint,
		Insecure:     c.Telemetry.Insecure,
	}
}

// ToStationConfig converts the scanner section
func (c *Config) ToStationConfig() scanner.StationConfig {
	return scanner.StationConfig{
		MaxAttempts: c.Scanner.MaxAttempts,
		Backoff:     c.Scanner.Backoff,
	}
}
