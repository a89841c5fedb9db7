package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nw-com/nw-patrol/config"
	"github.com/nw-com/nw-patrol/internal/adapter/gateway"
	"github.com/nw-com/nw-patrol/internal/adapter/handler"
	"github.com/nw-com/nw-patrol/internal/domain"
	"github.com/nw-com/nw-patrol/internal/infrastructure/postgres"
	"github.com/nw-com/nw-patrol/internal/server"
	"github.com/nw-com/nw-patrol/internal/usecase"
	"github.com/nw-com/nw-patrol/metrics"
	"github.com/nw-com/nw-patrol/middleware"
	"github.com/nw-com/nw-patrol/utils/logger"
	"github.com/nw-com/nw-patrol/utils/otel"
)

func main() {
	// Handle healthcheck subcommand (for Docker healthcheck in distroless image)
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		if err := runHealthcheck(); err != nil {
			fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Could not load .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("user-admin exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	otelCfg := otel.ConfigFromEnv()
	otelShutdown, err := otel.InitProvider(ctx, otelCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OpenTelemetry: %v\n", err)
		otelCfg.Enabled = false
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown OpenTelemetry: %v\n", err)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Init(cfg.LogLevel, otelCfg.Enabled)
	appLogger.InfoContext(ctx, "configuration loaded",
		"port", cfg.Port,
		"kratos_public_url", cfg.KratosPublicURL,
		"kratos_admin_url", cfg.KratosAdminURL,
		"auth_token_mode", cfg.AuthTokenMode,
		"upstream_timeout", cfg.UpstreamTimeout)

	db, err := postgres.NewConnection(ctx, cfg.DatabaseDSN(), appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to profile store: %w", err)
	}
	defer db.Close()

	kratosGateway, err := gateway.NewKratosGateway(
		cfg.KratosPublicURL,
		cfg.KratosAdminURL,
		cfg.KratosIdentitySchemaID,
		cfg.UpstreamTimeout,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("failed to create kratos gateway: %w", err)
	}

	var verifier domain.TokenVerifier = kratosGateway
	if cfg.AuthTokenMode == config.TokenModeBackendJWT {
		verifier = gateway.NewBackendTokenVerifier(gateway.BackendTokenConfig{
			Secret:   cfg.BackendTokenSecret,
			Issuer:   cfg.BackendTokenIssuer,
			Audience: cfg.BackendTokenAudience,
		}, appLogger)
	}

	profiles := postgres.NewProfileRepository(db.Pool(), appLogger)
	guard := usecase.NewAdminGuard(verifier, profiles, appLogger, cfg.UpstreamTimeout)

	var (
		lifecycleMetrics usecase.Metrics
		metricsHandler   http.Handler
	)
	if cfg.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		lifecycleMetrics = metrics.NewRecorder(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	lifecycle := usecase.NewUserLifecycle(guard, kratosGateway, profiles, lifecycleMetrics, appLogger, cfg.UpstreamTimeout)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, appLogger)

	e := server.New(server.Options{
		Config:    cfg,
		Lifecycle: lifecycle,
		Checks: map[string]handler.Pinger{
			"postgres": db,
			"kratos":   kratosGateway,
		},
		Metrics:     metricsHandler,
		RateLimiter: limiter,
		ServiceName: otelCfg.ServiceName,
		Tracing:     otelCfg.Enabled,
		Logger:      appLogger,
	})

	address := net.JoinHostPort(cfg.Host, cfg.Port)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.InfoContext(gctx, "starting user-admin server", "address", address)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	appLogger.Info("server exited properly")
	return nil
}

// runHealthcheck performs a health check against the local server
func runHealthcheck() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9600"
	}

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}
