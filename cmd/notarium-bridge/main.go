package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/erauner12/notarium-bridge/internal/backend"
	"github.com/erauner12/notarium-bridge/internal/cache"
	"github.com/erauner12/notarium-bridge/internal/config"
	"github.com/erauner12/notarium-bridge/internal/logging"
	"github.com/erauner12/notarium-bridge/internal/rpc"
	"github.com/erauner12/notarium-bridge/internal/sync"
	"github.com/erauner12/notarium-bridge/internal/tools"
)

const version = "0.1.0"

var (
	showVersion = flag.Bool("version", false, "Show version information")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	logLevel    = flag.String("log-level", "", "Log level (trace, debug, info, warn, error, fatal)")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("notarium-bridge version %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Debug: cfg.Debug})
	logger.Info().Str("version", version).Str("bucket", cfg.Bucket).Bool("encrypted", cfg.Encrypted()).Msg("starting notarium-bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("notarium-bridge failed")
		os.Exit(1)
	}

	logger.Info().Msg("notarium-bridge stopped gracefully")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if *debug {
		cfg.Debug = true
		if *logLevel == "" {
			cfg.LogLevel = "debug"
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, resync, err := cache.Open(cfg.CachePath, cache.Config{
		Username:      cfg.Username,
		EncryptionKey: cfg.DBEncryptionKey,
		KDFIterations: cfg.DBEncryptionKDFIters,
	}, logging.Component(logger, "cache"))
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()
	if resync {
		logger.Warn().Msg("full resync required on this run")
	}

	client := backend.NewHTTPClient(cfg.AuthBaseURL, cfg.DataBaseURL, cfg.AppID, cfg.AppKey, cfg.APITimeout(), logging.Component(logger, "backend"))
	if err := client.Authorize(ctx, cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("authorizing with backend: %w", err)
	}

	toolCtx := tools.NewContext(store, client, cfg.Bucket)
	registry := tools.RegisterAll()
	server := rpc.NewServer(registry, toolCtx, os.Stdout, logging.Component(logger, "rpc"))

	engine := sync.NewEngine(store, client, cfg.Bucket, cfg.SyncInterval(), logging.Component(logger, "sync"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, os.Stdin)
	})

	return g.Wait()
}
