package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/feedbacksense/ai/metrics"
	"github.com/hrygo/feedbacksense/ai/observability/logging"
	"github.com/hrygo/feedbacksense/internal/profile"
	apiv1 "github.com/hrygo/feedbacksense/server/router/api/v1"
	"github.com/hrygo/feedbacksense/server/service/analyzer"
	"github.com/hrygo/feedbacksense/store"
)

// bodyLimit leaves room for the longest accepted feedback when every character
// is a non-BMP rune sent as an escaped surrogate pair (12 bytes), plus framing.
const bodyLimit = "128K"

// Options holds the collaborators of the server. Store, Metrics and Recorder
// are optional.
type Options struct {
	Analyzer *analyzer.Analyzer
	Store    *store.Store
	Metrics  *metrics.PrometheusExporter
	Recorder *analyzer.Recorder
	Logger   *slog.Logger
	// Closers are released on shutdown after the recorder has drained.
	Closers []func() error
}

type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	recorder   *analyzer.Recorder
	logger     *slog.Logger
	closers    []func() error
}

func NewServer(ctx context.Context, profile *profile.Profile, opts Options) (*Server, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = NewHTTPErrorHandler(logger)
	echoServer.Server.ReadHeaderTimeout = 10 * time.Second

	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	echoServer.Use(RequestLogger(logger))
	echoServer.Use(middleware.CORS())
	echoServer.Use(middleware.BodyLimit(bodyLimit))
	// promhttp negotiates its own compression.
	echoServer.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	if opts.Metrics != nil {
		echoServer.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	service := apiv1.NewAPIV1Service(profile, opts.Analyzer, opts.Store)
	service.RegisterRoutes(ctx, echoServer)

	return &Server{
		Profile:    profile,
		echoServer: echoServer,
		recorder:   opts.Recorder,
		logger:     logger,
		closers:    opts.Closers,
	}, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the profile address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address once Start has returned.
func (s *Server) Addr() net.Addr {
	return s.echoServer.ListenerAddr()
}

// Shutdown stops accepting requests, drains the recorder and releases
// collaborators.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", "error", err)
	}

	if s.recorder != nil {
		if err := s.recorder.Close(5 * time.Second); err != nil {
			s.logger.Error("failed to close recorder", "error", err)
		}
	}

	for _, closer := range s.closers {
		if err := closer(); err != nil {
			s.logger.Error("failed to close collaborator", "error", err)
		}
	}

	s.logger.Info("server stopped properly")
}

// RequestLogger stores a request-scoped logger in the request context, sets
// the X-Process-Time header and logs every completed request.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			reqLogger := logger.With("request_id", res.Header().Get(echo.HeaderXRequestID))
			c.SetRequest(req.WithContext(logging.ToContext(req.Context(), reqLogger)))

			res.Before(func() {
				res.Header().Set("X-Process-Time", strconv.FormatFloat(time.Since(start).Seconds(), 'f', 6, 64))
			})

			if err := next(c); err != nil {
				c.Error(err)
			}

			reqLogger.Info("request",
				"method", req.Method,
				"path", c.Path(),
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds())
			return nil
		}
	}
}
