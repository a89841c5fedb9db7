// Command provision creates patrol accounts as a trusted operator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nw-com/nw-patrol/config"
	"github.com/nw-com/nw-patrol/internal/adapter/gateway"
	"github.com/nw-com/nw-patrol/internal/cli"
	"github.com/nw-com/nw-patrol/internal/infrastructure/postgres"
	"github.com/nw-com/nw-patrol/internal/usecase"
	"github.com/nw-com/nw-patrol/utils/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Could not load .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(connect).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provision: %v\n", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}

// connect wires an operator-guarded lifecycle against both stores.
func connect(ctx context.Context) (cli.Provisioner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout carries the command report; logs go to stderr.
	appLogger := logger.NewWithWriter(cfg.LogLevel, os.Stderr)

	db, err := postgres.NewConnection(ctx, cfg.DatabaseDSN(), appLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to profile store: %w", err)
	}

	kratosGateway, err := gateway.NewKratosGateway(
		cfg.KratosPublicURL,
		cfg.KratosAdminURL,
		cfg.KratosIdentitySchemaID,
		cfg.UpstreamTimeout,
		appLogger,
	)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create kratos gateway: %w", err)
	}

	profiles := postgres.NewProfileRepository(db.Pool(), appLogger)
	lifecycle := usecase.NewUserLifecycle(
		usecase.NewOperatorGuard(cfg.OperatorID),
		kratosGateway,
		profiles,
		nil,
		appLogger,
		cfg.UpstreamTimeout,
	)

	appLogger.InfoContext(ctx, "provisioning as operator", "operator_id", cfg.OperatorID)
	return lifecycle, db.Close, nil
}
