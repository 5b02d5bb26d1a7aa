package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"safeLiquidity/internal/chain"
	"safeLiquidity/internal/config"
	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
	"safeLiquidity/internal/permit"
)

type permitOutput struct {
	TypedData json.RawMessage    `json:"typed_data"`
	Owner     string             `json:"owner"`
	Result    model.PermitResult `json:"permit"`
}

func runPermit(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPermit(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pairAddr, err := parseAddress("pair", cfg.Pair)
	if err != nil {
		return err
	}
	spender := cfg.Network.Router
	if cfg.Spender != "" {
		if spender, err = parseAddress("spender", cfg.Spender); err != nil {
			return err
		}
	}
	value, err := parseAmount("value", cfg.Value)
	if err != nil {
		return err
	}

	var key *ecdsa.PrivateKey
	var owner common.Address
	if cfg.KeyFile != "" {
		if key, err = loadKey(cfg.KeyFile); err != nil {
			return err
		}
		owner = crypto.PubkeyToAddress(key.PublicKey)
	} else if owner, err = parseAddress("owner", cfg.Owner); err != nil {
		return err
	}

	var client *chain.Client
	if cfg.RPCURL != "" {
		if client, err = dialChain(ctx, cfg.Common, logger); err != nil {
			return err
		}
		defer client.Close()
		if err := checkChainID(ctx, client, &cfg.Network); err != nil {
			return err
		}
	}

	domain, err := permitDomain(ctx, client, cfg, pairAddr)
	if err != nil {
		return err
	}

	var deadline *big.Int
	if cfg.Deadline != "" {
		ts, err := config.ParseTimestamp(cfg.Deadline)
		if err != nil {
			return fmt.Errorf("parse deadline: %w", err)
		}
		deadline = new(big.Int).SetUint64(ts)
	}

	// With a key and a live node the nonce is read at signing time and
	// checked again afterwards.
	if key != nil && client != nil && cfg.Nonce == "" {
		preparer := permit.NewPreparer(client, cfg.TTL, logger)
		signed, err := preparer.Prepare(ctx, permit.Request{
			Pair:     pairAddr,
			Spender:  spender,
			Value:    value,
			Domain:   domain,
			Deadline: deadline,
		}, key)
		if err != nil {
			return err
		}
		return printPermit(signed.TypedData, owner, signed.Result())
	}

	var nonce *big.Int
	switch {
	case cfg.Nonce != "":
		if nonce, err = parseAmount("nonce", cfg.Nonce); err != nil {
			return err
		}
	case client != nil:
		if nonce, err = dex.PermitNonce(ctx, client, pairAddr, owner); err != nil {
			return fmt.Errorf("read permit nonce: %w", err)
		}
	default:
		return fmt.Errorf("--nonce is required without --rpc")
	}

	if deadline == nil {
		deadline = big.NewInt(time.Now().Add(cfg.TTL).Unix())
	}

	msg := model.PermitMessage{
		Owner:    owner,
		Spender:  spender,
		Value:    value,
		Nonce:    nonce,
		Deadline: deadline,
	}
	td, err := permit.Build(msg, domain)
	if err != nil {
		return err
	}
	digest, err := permit.Hash(td)
	if err != nil {
		return err
	}

	result := model.PermitResult{
		Digest:   common.BytesToHash(digest).Hex(),
		Nonce:    nonce.String(),
		Deadline: deadline.String(),
	}
	if key != nil {
		sig, err := permit.Sign(td, key)
		if err != nil {
			return err
		}
		result.Signature = common.Bytes2Hex(sig.Bytes())
		result.V = sig.V
		result.R = common.Bytes2Hex(sig.R[:])
		result.S = common.Bytes2Hex(sig.S[:])
	}

	logger.Debug("permit built",
		zap.String("pair", pairAddr.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Bool("signed", key != nil),
	)

	return printPermit(td, owner, result)
}

// permitDomain uses --name when given, otherwise reads the domain from the
// pair and checks it against DOMAIN_SEPARATOR.
func permitDomain(ctx context.Context, client *chain.Client, cfg config.PermitConfig, pairAddr common.Address) (model.Domain, error) {
	if cfg.Name != "" {
		if cfg.Network.ChainID == nil {
			return model.Domain{}, fmt.Errorf("chain id is required")
		}
		return model.Domain{
			Name:              cfg.Name,
			Version:           cfg.Network.PermitVersion,
			ChainID:           cfg.Network.ChainID,
			VerifyingContract: pairAddr,
		}, nil
	}
	if client == nil {
		return model.Domain{}, fmt.Errorf("--name is required without --rpc")
	}
	return permit.ResolveDomain(ctx, client, pairAddr, cfg.Network.ChainID, cfg.Network.PermitVersion)
}

func printPermit(td apitypes.TypedData, owner common.Address, result model.PermitResult) error {
	raw, err := permit.Encode(td)
	if err != nil {
		return err
	}
	return printJSON(permitOutput{
		TypedData: raw,
		Owner:     owner.Hex(),
		Result:    result,
	})
}
