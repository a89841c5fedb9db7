// Package server assembles the echo instance that serves the admin API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/nw-com/nw-patrol/config"
	"github.com/nw-com/nw-patrol/internal/adapter/handler"
	"github.com/nw-com/nw-patrol/middleware"
)

const (
	bodyLimit       = "64K"
	minServeTimeout = 15 * time.Second
)

// Options carries everything New wires into the router.
type Options struct {
	Config      *config.Config
	Lifecycle   handler.UserLifecycle
	Checks      map[string]handler.Pinger
	Metrics     http.Handler // nil disables /metrics
	RateLimiter *middleware.RateLimiter
	ServiceName string
	Tracing     bool
	Logger      *slog.Logger
}

// New builds the echo server with the admin, health and metrics routes.
func New(opts Options) *echo.Echo {
	cfg := opts.Config
	log := opts.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(log)

	// Guard lookup plus two sequential store calls, each bounded by the upstream timeout.
	timeout := max(minServeTimeout, 3*cfg.UpstreamTimeout+5*time.Second)
	e.Server.ReadTimeout = minServeTimeout
	e.Server.WriteTimeout = timeout
	e.Server.IdleTimeout = 60 * time.Second

	e.Use(echomw.RequestID())
	if opts.Tracing {
		e.Use(otelecho.Middleware(opts.ServiceName, otelecho.WithSkipper(isProbe)))
	}
	e.Use(echomw.RequestLoggerWithConfig(requestLoggerConfig(log)))
	e.Use(echomw.Recover())

	healthHandler := handler.NewHealthHandler(opts.Checks, log)
	e.GET("/health", healthHandler.Handle)
	e.GET("/ready", healthHandler.Ready)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	admin := e.Group("/v1/admin",
		echomw.BodyLimit(bodyLimit),
		middleware.SecurityHeaders(cfg.EnableHSTS),
	)
	if opts.RateLimiter != nil {
		admin.Use(opts.RateLimiter.Middleware())
	}

	handler.NewUserHandler(opts.Lifecycle, CredentialFor(cfg), log).Register(admin)

	return e
}

// CredentialFor picks where callers present their credential.
// AUTH_TOKEN_HEADER pins a single header; otherwise a bearer token is tried
// first and the mode's native header second.
func CredentialFor(cfg *config.Config) handler.CredentialExtractor {
	if cfg.AuthTokenHeader != "" {
		return handler.HeaderCredential(cfg.AuthTokenHeader)
	}
	native := "X-Session-Token"
	if cfg.AuthTokenMode == config.TokenModeBackendJWT {
		native = "X-Patrol-Backend-Token"
	}
	return handler.FirstCredential(handler.BearerCredential, handler.HeaderCredential(native))
}

func isProbe(c echo.Context) bool {
	switch c.Path() {
	case "/health", "/ready", "/metrics":
		return true
	default:
		return false
	}
}

func requestLoggerConfig(log *slog.Logger) echomw.RequestLoggerConfig {
	return echomw.RequestLoggerConfig{
		Skipper:      isProbe,
		LogStatus:    true,
		LogURI:       true,
		LogError:     true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ctx := c.Request().Context()
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
				"latency_ms", v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				log.ErrorContext(ctx, "request failed", append(attrs, "error", v.Error.Error())...)
				return nil
			}
			log.InfoContext(ctx, "request completed", attrs...)
			return nil
		},
	}
}
