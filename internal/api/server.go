package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/banking/batch-analysis/internal/config"
	"github.com/banking/batch-analysis/internal/pkg/logger"
)

// Server is the HTTP front of the analysis engine
type Server struct {
	echo *echo.Echo
	log  *logger.Logger
}

// NewServer builds the router. Authentication is mandatory unless
// security.require_auth is off.
func NewServer(analyzer Analyzer, cfg *config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Security.RequireAuth && cfg.Security.JWTSecret == "" {
		return nil, errors.New("security.jwt_secret must be set when authentication is required")
	}

	log = log.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(log)
	e.Validator = NewValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(RequestContext())
	e.Use(RequestLogger(log))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	if cfg.Server.MaxRequestSize != "" {
		e.Use(middleware.BodyLimit(cfg.Server.MaxRequestSize))
	}

	h := &handlers{analyzer: analyzer, service: cfg.Telemetry.ServiceName}

	e.GET("/health", h.health)

	g := e.Group("/analysis")
	g.GET("/types", h.analysisTypes)

	batch := g.Group("/batch")
	if cfg.Security.RequireAuth {
		batch.Use(JWTAuth([]byte(cfg.Security.JWTSecret)))
	}
	batch.POST("", h.runBatch)
	batch.GET("/:id", h.getResult)

	return &Server{echo: e, log: log}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", logger.StringField("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
