// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ServiceName  string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ServiceName:  "river-voucher",
	}
}

// Services are the application services the HTTP adapter exposes
type Services struct {
	Vouchers service.VoucherService
	Sessions service.SessionService
	Reports  service.ReportService
	Tickets  service.TicketService
	Audit    service.AuditService
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)
	auth := authMiddleware(s.services.Sessions)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.POST("/session", h.Login)

	secured := api.Group("", auth)
	{
		secured.GET("/session", h.CurrentSession)
		secured.POST("/session/vessel", requireRole(entity.RoleCarrier), h.SelectVessel)

		secured.GET("/requisicoes", h.ListRequisitions)
		secured.POST("/requisicoes", requireRole(entity.RoleIssuer, entity.RoleAdmin), h.CreateRequisition)
		secured.GET("/requisicoes/:id", h.GetRequisition)
		secured.GET("/requisicoes/:id/historico", requireRole(entity.RoleIssuer, entity.RoleRepresentative, entity.RoleAdmin), h.History)
		secured.POST("/requisicoes/:id/authorize", requireRole(entity.RoleRepresentative), h.Authorize)
		secured.POST("/requisicoes/:id/redeem", requireRole(entity.RoleCarrier), h.Redeem)
		secured.POST("/scan", requireRole(entity.RoleCarrier), h.Scan)

		reports := secured.Group("/relatorios", requireRole(entity.RoleIssuer, entity.RoleRepresentative, entity.RoleAdmin))
		reports.GET("", h.Report)
		reports.GET("/export", h.ExportReport)
	}

	stubs := s.router.Group("/canhoto", auth)
	{
		stubs.GET("/:id", h.TicketPDF)
		stubs.GET("/:id/preview.png", h.TicketPNG)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(s.router, s.config.ServiceName),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
