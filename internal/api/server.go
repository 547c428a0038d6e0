// Package api serves the pollypress HTTP endpoints: presigned uploads,
// readiness-checked presigned downloads and a status check.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/core"
	"github.com/book-expert/pollypress/internal/validate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Response messages.
const (
	msgAPIHealthy          = "API is healthy"
	msgMissingBody         = "Missing request body"
	msgInvalidJSON         = "Invalid JSON body"
	msgInvalidBody         = "Invalid request body"
	msgUploadFailed        = "Failed to generate upload URL"
	msgMissingFileKey      = "Missing fileKey query parameter"
	msgFileNotReady        = "File not ready"
	msgFileNotReadyDetail  = "The audio file is still being processed. Please try again in a few moments."
	msgDownloadFailed      = "Failed to generate download URL"
	corsAllowedHeaders     = "Content-Type"
	corsAllowedMethods     = "GET,POST,OPTIONS"
	queryFileKey           = "fileKey"
	fieldFileType          = "fileType"
	shutdownGracePeriod    = 10 * time.Second
	requestLogFormatString = "%s %s -> %d (%s)"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store     core.ObjectStore
	presigner core.Presigner
	storage   config.StorageConfig
	settings  config.APIConfig
	validate  *validator.Validate
	newID     func() string
	log       *logger.Logger
}

// NewServer creates the API server.
func NewServer(
	store core.ObjectStore,
	presigner core.Presigner,
	storage config.StorageConfig,
	settings config.APIConfig,
	log *logger.Logger,
) *Server {
	return &Server{
		store:     store,
		presigner: presigner,
		storage:   storage,
		settings:  settings,
		validate:  validate.New(),
		newID:     uuid.NewString,
		log:       log,
	}
}

// WithIDGenerator replaces the generator used for upload file ids.
func (s *Server) WithIDGenerator(newID func() string) *Server {
	s.newID = newID

	return s
}

// Echo builds the router with CORS, request timeout, request logging and recovery.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, values middleware.RequestLoggerValues) error {
			s.log.Info(requestLogFormatString, values.Method, values.URIPath, values.Status, values.Latency)

			return nil
		},
	}))
	e.Use(s.cors)
	e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
		Timeout: s.settings.RequestTimeout(),
	}))

	s.Routes(e)

	return e
}

// Routes registers the endpoints on e.
func (s *Server) Routes(e *echo.Echo) {
	e.GET("/status", s.status)
	e.POST("/upload", s.upload)
	e.GET("/download", s.download)
}

// HTTPServer wraps the router with the configured listen address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	timeout := s.settings.RequestTimeout()

	return &http.Server{
		Addr:              s.settings.ListenAddr,
		Handler:           s.Echo(),
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + time.Second,
	}
}

// ShutdownGracePeriod is how long in-flight requests get on shutdown.
func ShutdownGracePeriod() time.Duration {
	return shutdownGracePeriod
}

// cors sets the CORS headers on every response and answers preflight
// requests with 200 and an empty body.
func (s *Server) cors(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Response().Header()
		header.Set(echo.HeaderAccessControlAllowOrigin, strings.Join(s.settings.AllowedOrigins, ","))
		header.Set(echo.HeaderAccessControlAllowHeaders, corsAllowedHeaders)
		header.Set(echo.HeaderAccessControlAllowMethods, corsAllowedMethods)

		if c.Request().Method == http.MethodOptions {
			return c.NoContent(http.StatusOK)
		}

		return next(c)
	}
}

func (s *Server) status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Message: msgAPIHealthy})
}
