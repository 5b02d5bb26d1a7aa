package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"safeLiquidity/internal/batch"
	"safeLiquidity/internal/config"
	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/pair"
	"safeLiquidity/internal/storage"
	"safeLiquidity/internal/storage/postgres"
)

func runBatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.In == "" {
		return fmt.Errorf("--in is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var caller dex.Caller
	if cfg.RPCURL != "" {
		client, err := dialChain(ctx, cfg.Common, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := checkChainID(ctx, client, &cfg.Network); err != nil {
			return err
		}
		caller = client
	} else if cfg.Verify {
		return fmt.Errorf("--verify requires --rpc")
	}
	if cfg.Network.ChainID == nil {
		return fmt.Errorf("chain id is required for network %s", cfg.Network.Name)
	}

	data, err := os.ReadFile(cfg.In)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	lines, err := batch.ReadRequests(bytes.NewReader(data))
	if err != nil {
		return err
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}

	runner := batch.NewRunner(batch.RunConfig{
		Input:             cfg.In,
		InputDigest:       batch.InputDigest(data),
		ChainID:           cfg.Network.ChainID.Uint64(),
		BatchSize:         cfg.BatchSize,
		Verify:            cfg.Verify,
		Concurrency:       cfg.Concurrency,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
	},
		pair.NewDeriver(cfg.Network.Factory, cfg.Network.InitCodeHash, cfg.Network.WrappedNative),
		caller,
		sinks,
		storage.NewJsonlStorage(cfg.Errors),
		logger,
	)

	logger.Info("batch start",
		zap.String("input", cfg.In),
		zap.Int("lines", len(lines)),
		zap.String("network", cfg.Network.Name),
		zap.Bool("verify", cfg.Verify),
	)

	stats, err := runner.Run(ctx, lines)
	if err != nil {
		return err
	}

	logger.Info("batch done",
		zap.Int("derived", stats.Derived),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	return nil
}
