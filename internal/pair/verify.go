package pair

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
)

// Verify checks a derived pair against the chain: the factory must have
// registered the same address and the pool must report the same tokens.
// A mismatch usually means the factory or init code hash is wrong.
func Verify(ctx context.Context, caller dex.Caller, p model.Pair) error {
	registered, err := dex.FactoryPair(ctx, caller, p.Factory, p.Item0.Address, p.Item1.Address)
	if err != nil {
		return fmt.Errorf("factory getPair: %w", err)
	}
	if registered == (common.Address{}) {
		return fmt.Errorf("%w: %s/%s", ErrPairNotDeployed, p.Item0.Address.Hex(), p.Item1.Address.Hex())
	}
	if registered != p.Address {
		return fmt.Errorf("%w: derived %s, factory has %s", ErrPairMismatch, p.Address.Hex(), registered.Hex())
	}

	token0, token1, err := dex.PairTokens(ctx, caller, p.Address)
	if err != nil {
		return fmt.Errorf("pair tokens: %w", err)
	}
	if token0 != p.Item0.Address || token1 != p.Item1.Address {
		return fmt.Errorf("%w: pool holds %s/%s", ErrPairMismatch, token0.Hex(), token1.Hex())
	}
	return nil
}
