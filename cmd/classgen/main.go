package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/noah-isme/class-builder-api/internal/cli"
	"github.com/noah-isme/class-builder-api/internal/service"
	"github.com/noah-isme/class-builder-api/pkg/config"
	"github.com/noah-isme/class-builder-api/pkg/logger"
	"github.com/noah-isme/class-builder-api/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logr, err := logger.NewConsole(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	builder := service.NewClassBuilderService(nil, nil, nil, nil, nil, nil, logr, service.ClassBuilderConfig{
		DefaultMinSize: cfg.ClassBuilder.DefaultMinSize,
		DefaultMaxSize: cfg.ClassBuilder.DefaultMaxSize,
		MaxStudents:    cfg.ClassBuilder.MaxStudents,
		ProposalTTL:    cfg.ClassBuilder.ProposalTTL,
		ParallelPools:  cfg.ClassBuilder.ParallelPools,
	})
	files, err := storage.NewLocalStorage(os.TempDir())
	if err != nil {
		return err
	}
	exports := service.NewExportService(files, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), service.ExportConfig{}, logr)
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCmd(&cli.App{Builder: builder, Exports: exports, Tokens: tokens})
	return root.ExecuteContext(ctx)
}
