package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"escrowsc/config"
	"escrowsc/core"
	nativecommon "escrowsc/native/common"
	"escrowsc/observability/logging"
	telemetry "escrowsc/observability/otel"
	"escrowsc/rpc"
	"escrowsc/services/indexer"
	"escrowsc/storage"
)

func main() {
	configFile := flag.String("config", "./escrow.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("escrowd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := strings.TrimSpace(os.Getenv("ESCROW_ENV"))
	if env == "" {
		env = cfg.Env
	}
	logger := logging.SetupWithFile("escrowd", env, logging.FileOptions{Path: cfg.LogFile})
	logger.Info("configuration loaded", logging.MaskField("config", configFile), "backend", cfg.DBBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "escrowd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	genesis, err := genesisAllocations(cfg)
	if err != nil {
		return err
	}
	opts := []core.Option{
		core.WithLogger(logger),
		core.WithGenesis(genesis),
		core.WithPauses(nativecommon.NewPauses(cfg.PausedModules...)),
	}
	var history *indexer.Indexer
	if dsn := strings.TrimSpace(cfg.IndexDSN); dsn != "" {
		indexDB, err := indexer.Open(dsn)
		if err != nil {
			return err
		}
		if sqlDB, err := indexDB.DB(); err == nil {
			defer sqlDB.Close()
		}
		history, err = indexer.New(indexDB, logger)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithEmitter(history))
		logger.Info("offer history index enabled", logging.MaskField("dsn", dsn))
	}
	node, err := core.NewNode(db, opts...)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	logger.Info("node ready", "height", node.Height(), "root", node.StateRoot().Hex(), "paused", cfg.PausedModules)

	server := rpc.NewServer(node, rpc.ServerConfig{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             int(cfg.RateLimit.Burst),
		},
	}, logger)
	if history != nil {
		server.SetHistory(history)
	}
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("escrowd shut down")
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if cfg.DBBackend == config.BackendMemory {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(cfg.DataDir)
}

func genesisAllocations(cfg *config.Config) ([]core.Allocation, error) {
	out := make([]core.Allocation, 0, len(cfg.Genesis))
	for i, alloc := range cfg.Genesis {
		addr, payment, err := alloc.Parse()
		if err != nil {
			return nil, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		out = append(out, core.Allocation{Address: addr, Payment: payment})
	}
	return out, nil
}
