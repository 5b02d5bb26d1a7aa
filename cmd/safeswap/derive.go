package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"safeLiquidity/internal/config"
	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
	"safeLiquidity/internal/pair"
	"safeLiquidity/internal/storage/postgres"
)

type deriveItem struct {
	Token   string           `json:"token"`
	Address string           `json:"address"`
	Native  bool             `json:"native,omitempty"`
	Meta    *model.TokenMeta `json:"meta,omitempty"`
}

type deriveOutput struct {
	Network      string     `json:"network"`
	Factory      string     `json:"factory"`
	InitCodeHash string     `json:"init_code_hash"`
	Token0       deriveItem `json:"token0"`
	Token1       deriveItem `json:"token1"`
	Pair         string     `json:"pair"`
	Verified     bool       `json:"verified"`
	Cached       bool       `json:"cached,omitempty"`
}

func runDerive(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDerive(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	deriver := pair.NewDeriver(cfg.Network.Factory, cfg.Network.InitCodeHash, cfg.Network.WrappedNative)
	p, err := deriver.PairFromStrings(cfg.TokenA, cfg.TokenB)
	if err != nil {
		return err
	}

	out := deriveOutput{
		Network:      cfg.Network.Name,
		Factory:      p.Factory.Hex(),
		InitCodeHash: p.InitCodeHash.Hex(),
		Token0:       newDeriveItem(p.Item0),
		Token1:       newDeriveItem(p.Item1),
		Pair:         p.Address.Hex(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RPCURL != "" {
		client, err := dialChain(ctx, cfg.Common, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := checkChainID(ctx, client, &cfg.Network); err != nil {
			return err
		}

		if cfg.Verify {
			if err := pair.Verify(ctx, client, p); err != nil {
				return err
			}
			out.Verified = true
		}

		cache := dex.NewTokenMetaCache()
		meta0 := dex.CachedTokenMeta(ctx, client, cache, p.Item0.Address, logger)
		meta1 := dex.CachedTokenMeta(ctx, client, cache, p.Item1.Address, logger)
		out.Token0.Meta = &meta0
		out.Token1.Meta = &meta1
	} else if cfg.Verify {
		return fmt.Errorf("--verify requires --rpc")
	}

	if cfg.PGDSN != "" {
		cached, err := cachePair(ctx, cfg, p, out.Verified, logger)
		if err != nil {
			return err
		}
		out.Cached = cached
	}

	logger.Debug("pair derived",
		zap.String("token0", p.Item0.Address.Hex()),
		zap.String("token1", p.Item1.Address.Hex()),
		zap.String("pair", p.Address.Hex()),
	)

	return printJSON(out)
}

// cachePair looks the pair up in the Postgres cache and stores it when it
// is missing or newly verified. It reports whether a cached row existed.
func cachePair(ctx context.Context, cfg config.DeriveConfig, p model.Pair, verified bool, logger *zap.Logger) (bool, error) {
	if cfg.Network.ChainID == nil {
		return false, fmt.Errorf("chain id is required for network %s", cfg.Network.Name)
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return false, fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return false, err
	}

	record := model.PairRecord{
		ChainID:      cfg.Network.ChainID.Uint64(),
		Factory:      strings.ToLower(p.Factory.Hex()),
		InitCodeHash: p.InitCodeHash.Hex(),
		Token0:       strings.ToLower(p.Item0.Address.Hex()),
		Token1:       strings.ToLower(p.Item1.Address.Hex()),
		Pair:         p.Address.Hex(),
		Verified:     verified,
		DerivedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	cached, ok, err := store.LookupPair(ctx, record.ChainID, record.Factory, record.Token0, record.Token1)
	if err != nil {
		return false, fmt.Errorf("lookup pair: %w", err)
	}
	if ok {
		if !strings.EqualFold(cached.Pair, record.Pair) {
			logger.Warn("cached pair differs from derived address",
				zap.String("cached", cached.Pair),
				zap.String("derived", record.Pair),
				zap.String("cached_init_code_hash", cached.InitCodeHash),
			)
		} else if cached.Verified || !verified {
			return true, nil
		}
	}

	if err := store.UpsertPairs(ctx, []model.PairRecord{record}); err != nil {
		return ok, fmt.Errorf("store pair: %w", err)
	}
	return ok, nil
}

func newDeriveItem(item model.PairItem) deriveItem {
	token := item.Token.Hex()
	if item.Native {
		token = pair.NativeMarker
	}
	return deriveItem{
		Token:   token,
		Address: item.Address.Hex(),
		Native:  item.Native,
	}
}
