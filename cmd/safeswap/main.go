package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"safeLiquidity/internal/chain"
	"safeLiquidity/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "safeswap",
		Short:        "Liquidity pair derivation and permit tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the pool address of a token pair",
		RunE:  runDerive,
	}
	addNetworkFlags(deriveCmd.Flags())
	deriveCmd.Flags().String("token-a", "", "first token address or \"native\"")
	deriveCmd.Flags().String("token-b", "", "second token address or \"native\"")
	deriveCmd.Flags().Bool("verify", false, "check the derived address against the factory (requires --rpc)")
	deriveCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the pair cache")
	root.AddCommand(deriveCmd)

	permitCmd := &cobra.Command{
		Use:   "permit",
		Short: "Build and optionally sign an LP token permit",
		RunE:  runPermit,
	}
	addNetworkFlags(permitCmd.Flags())
	permitCmd.Flags().String("pair", "", "pair (LP token) address")
	permitCmd.Flags().String("owner", "", "owner address (ignored when --key-file is set)")
	permitCmd.Flags().String("spender", "", "spender address, defaults to the network router")
	permitCmd.Flags().String("value", "", "permit value in LP token base units")
	permitCmd.Flags().String("nonce", "", "permit nonce; read from chain when empty")
	permitCmd.Flags().String("deadline", "", "deadline (unix seconds or RFC3339); now+ttl when empty")
	permitCmd.Flags().Duration("ttl", 20*time.Minute, "deadline offset from now")
	permitCmd.Flags().String("key-file", "", "hex private key file used to sign")
	permitCmd.Flags().String("name", "", "permit domain name; read from the pair when empty")
	root.AddCommand(permitCmd)

	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Sign a permit and build removeLiquidityWithPermit calldata",
		RunE:  runRemove,
	}
	addNetworkFlags(removeCmd.Flags())
	removeCmd.Flags().String("token-a", "", "first token address or \"native\"")
	removeCmd.Flags().String("token-b", "", "second token address or \"native\"")
	removeCmd.Flags().String("liquidity", "", "LP amount to burn; whole balance when empty")
	removeCmd.Flags().String("to", "", "recipient; defaults to the signer")
	removeCmd.Flags().Uint32("slippage-bps", 50, "allowed slippage in basis points")
	removeCmd.Flags().Duration("ttl", 20*time.Minute, "deadline offset from now")
	removeCmd.Flags().String("key-file", "", "hex private key file used to sign")
	removeCmd.Flags().Bool("approve-max", false, "sign the permit for the maximum uint256 value")
	root.AddCommand(removeCmd)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Derive pairs for a JSONL list of token pairs",
		RunE:  runBatch,
	}
	addNetworkFlags(batchCmd.Flags())
	batchCmd.Flags().String("in", "", "input JSONL of {\"token_a\",\"token_b\"}")
	batchCmd.Flags().String("out", "./data/pairs.jsonl", "output pairs JSONL")
	batchCmd.Flags().String("errors", "./data/derive_errors.jsonl", "output errors JSONL")
	batchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the pair cache")
	batchCmd.Flags().Uint64("batch-size", 500, "lines per batch")
	batchCmd.Flags().Bool("verify", false, "verify each pair on chain (requires --rpc)")
	batchCmd.Flags().Int("concurrency", 4, "concurrent verifications")
	batchCmd.Flags().String("checkpoint", "./data/batch_checkpoint.json", "checkpoint file path")
	batchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	root.AddCommand(batchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addNetworkFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "EVM RPC URL")
	flags.String("network", config.DefaultNetwork, "network preset or \"custom\"")
	flags.String("chain-id", "", "override chain id")
	flags.String("factory", "", "override factory address")
	flags.String("init-code-hash", "", "override pair init code hash")
	flags.String("router", "", "override router address")
	flags.String("wrapped-native", "", "override wrapped native token")
	flags.String("permit-version", "", "override permit domain version")
	flags.Int("max-retries", 3, "maximum RPC retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func dialChain(ctx context.Context, common config.Common, logger *zap.Logger) (*chain.Client, error) {
	if common.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, common.RPCURL,
		chain.WithRetry(common.MaxRetries, common.RetryBackoff),
		chain.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	return client, nil
}

// checkChainID makes sure the RPC endpoint serves the configured network,
// filling in the chain id when the network does not define one.
func checkChainID(ctx context.Context, client *chain.Client, network *config.Network) error {
	id, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if network.ChainID == nil {
		network.ChainID = id
		return nil
	}
	if network.ChainID.Cmp(id) != 0 {
		return fmt.Errorf("rpc chain id %s does not match network %s (%s)", id, network.Name, network.ChainID)
	}
	return nil
}
