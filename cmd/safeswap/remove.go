package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"safeLiquidity/internal/config"
	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
	"safeLiquidity/internal/pair"
	"safeLiquidity/internal/permit"
)

type removeOutput struct {
	Block      uint64             `json:"block"`
	Router     string             `json:"router"`
	Pair       string             `json:"pair"`
	Liquidity  string             `json:"liquidity"`
	Amount0    string             `json:"amount0"`
	Amount1    string             `json:"amount1"`
	Amount0Min string             `json:"amount0_min"`
	Amount1Min string             `json:"amount1_min"`
	Token0     model.TokenMeta    `json:"token0"`
	Token1     model.TokenMeta    `json:"token1"`
	Receive0   string             `json:"receive0"`
	Receive1   string             `json:"receive1"`
	To         string             `json:"to"`
	Permit     model.PermitResult `json:"permit"`
	Calldata   string             `json:"calldata"`
}

func runRemove(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRemove(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Network.Router == (common.Address{}) {
		return fmt.Errorf("router address is required for network %s", cfg.Network.Name)
	}

	key, err := loadKey(cfg.KeyFile)
	if err != nil {
		return err
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	to := owner
	if cfg.To != "" {
		if to, err = parseAddress("to", cfg.To); err != nil {
			return err
		}
	}

	deriver := pair.NewDeriver(cfg.Network.Factory, cfg.Network.InitCodeHash, cfg.Network.WrappedNative)
	p, err := deriver.PairFromStrings(cfg.TokenA, cfg.TokenB)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := dialChain(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := checkChainID(ctx, client, &cfg.Network); err != nil {
		return err
	}
	if err := pair.Verify(ctx, client, p); err != nil {
		return err
	}

	var liquidity *big.Int
	if cfg.Liquidity != "" {
		if liquidity, err = parseAmount("liquidity", cfg.Liquidity); err != nil {
			return err
		}
	} else if liquidity, err = dex.LiquidityBalance(ctx, client, p.Address, owner); err != nil {
		return fmt.Errorf("read liquidity balance: %w", err)
	}

	// Reserves and supply are read at one block so the quote is consistent.
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("read latest header: %w", err)
	}
	state, err := dex.FetchPairState(ctx, client, p.Address, header.Number)
	if err != nil {
		return fmt.Errorf("read pair state: %w", err)
	}
	quote, err := dex.QuoteRemoval(state, liquidity, cfg.SlippageBps)
	if err != nil {
		return err
	}

	domain, err := permit.ResolveDomain(ctx, client, p.Address, cfg.Network.ChainID, cfg.Network.PermitVersion)
	if err != nil {
		return err
	}

	value := liquidity
	if cfg.ApproveMax {
		value = new(big.Int).Set(math.MaxBig256)
	}

	preparer := permit.NewPreparer(client, cfg.TTL, logger)
	signed, err := preparer.Prepare(ctx, permit.Request{
		Pair:    p.Address,
		Spender: cfg.Network.Router,
		Value:   value,
		Domain:  domain,
	}, key)
	if err != nil {
		return err
	}

	calldata, err := dex.PackRemoveLiquidityWithPermit(dex.RemovalParams{
		Pair:       p,
		Liquidity:  liquidity,
		Quote:      quote,
		To:         to,
		Deadline:   signed.Message.Deadline,
		ApproveMax: cfg.ApproveMax,
		Signature:  signed.Signature,
	})
	if err != nil {
		return fmt.Errorf("pack router call: %w", err)
	}

	cache := dex.NewTokenMetaCache()
	meta0 := dex.CachedTokenMeta(ctx, client, cache, p.Item0.Address, logger)
	meta1 := dex.CachedTokenMeta(ctx, client, cache, p.Item1.Address, logger)

	logger.Info("removal prepared",
		zap.String("pair", p.Address.Hex()),
		zap.Uint64("block", header.Number.Uint64()),
		zap.String("liquidity", liquidity.String()),
		zap.String("amount0_min", quote.Amount0Min.String()),
		zap.String("amount1_min", quote.Amount1Min.String()),
		zap.Bool("native", p.HasNative()),
	)

	return printJSON(removeOutput{
		Block:      header.Number.Uint64(),
		Router:     cfg.Network.Router.Hex(),
		Pair:       p.Address.Hex(),
		Liquidity:  liquidity.String(),
		Amount0:    quote.Amount0.String(),
		Amount1:    quote.Amount1.String(),
		Amount0Min: quote.Amount0Min.String(),
		Amount1Min: quote.Amount1Min.String(),
		Token0:     meta0,
		Token1:     meta1,
		Receive0:   dex.FormatAmount(quote.Amount0, meta0.Decimals),
		Receive1:   dex.FormatAmount(quote.Amount1, meta1.Decimals),
		To:         to.Hex(),
		Permit:     signed.Result(),
		Calldata:   hexutil.Encode(calldata),
	})
}
