package dex

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"safeLiquidity/internal/model"
)

const maxBasisPoints = 10_000

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidSlippage       = errors.New("slippage must be between 0 and 10000 basis points")
)

// RemovalQuote is the expected output of burning liquidity, with minimums
// after slippage. Amounts are in pair order.
type RemovalQuote struct {
	Amount0    *big.Int
	Amount1    *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
}

// QuoteRemoval computes liquidity * reserve / totalSupply for both sides
// and applies slippageBps to get the minimums sent to the router.
func QuoteRemoval(state model.PairState, liquidity *big.Int, slippageBps uint32) (RemovalQuote, error) {
	if slippageBps > maxBasisPoints {
		return RemovalQuote{}, ErrInvalidSlippage
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return RemovalQuote{}, fmt.Errorf("%w: liquidity must be positive", ErrInsufficientLiquidity)
	}

	reserve0, ok := new(big.Int).SetString(state.Reserve0, 10)
	if !ok {
		return RemovalQuote{}, fmt.Errorf("invalid reserve0: %q", state.Reserve0)
	}
	reserve1, ok := new(big.Int).SetString(state.Reserve1, 10)
	if !ok {
		return RemovalQuote{}, fmt.Errorf("invalid reserve1: %q", state.Reserve1)
	}
	supply, ok := new(big.Int).SetString(state.TotalSupply, 10)
	if !ok {
		return RemovalQuote{}, fmt.Errorf("invalid total supply: %q", state.TotalSupply)
	}
	if supply.Sign() == 0 || liquidity.Cmp(supply) > 0 {
		return RemovalQuote{}, fmt.Errorf("%w: liquidity %s exceeds supply %s", ErrInsufficientLiquidity, liquidity, supply)
	}

	amount0 := new(big.Int).Div(new(big.Int).Mul(liquidity, reserve0), supply)
	amount1 := new(big.Int).Div(new(big.Int).Mul(liquidity, reserve1), supply)
	if amount0.Sign() == 0 || amount1.Sign() == 0 {
		return RemovalQuote{}, fmt.Errorf("%w: burned amounts round to zero", ErrInsufficientLiquidity)
	}

	return RemovalQuote{
		Amount0:    amount0,
		Amount1:    amount1,
		Amount0Min: applySlippage(amount0, slippageBps),
		Amount1Min: applySlippage(amount1, slippageBps),
	}, nil
}

func applySlippage(amount *big.Int, bps uint32) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(maxBasisPoints-bps)))
	return out.Div(out, big.NewInt(maxBasisPoints))
}

// RemovalParams are the router arguments of a permit-based removal.
type RemovalParams struct {
	Pair       model.Pair
	Liquidity  *big.Int
	Quote      RemovalQuote
	To         common.Address
	Deadline   *big.Int
	ApproveMax bool
	Signature  model.Signature
}

// PackRemoveLiquidityWithPermit builds router calldata. When one side of
// the pair is the native coin, removeLiquidityETHWithPermit is used so the
// router unwraps it.
func PackRemoveLiquidityWithPermit(params RemovalParams) ([]byte, error) {
	routerABI, err := V2RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse router abi: %w", err)
	}
	if params.Liquidity == nil || params.Deadline == nil {
		return nil, fmt.Errorf("liquidity and deadline are required")
	}
	if params.Quote.Amount0Min == nil || params.Quote.Amount1Min == nil {
		return nil, fmt.Errorf("removal quote is required")
	}

	sig := params.Signature
	p := params.Pair
	if p.Item0.Native && p.Item1.Native {
		return nil, fmt.Errorf("both pair sides are native")
	}

	if p.HasNative() {
		token, tokenMin, ethMin := p.Item1.Address, params.Quote.Amount1Min, params.Quote.Amount0Min
		if p.Item1.Native {
			token, tokenMin, ethMin = p.Item0.Address, params.Quote.Amount0Min, params.Quote.Amount1Min
		}
		return routerABI.Pack("removeLiquidityETHWithPermit",
			token,
			params.Liquidity,
			tokenMin,
			ethMin,
			params.To,
			params.Deadline,
			params.ApproveMax,
			sig.V,
			sig.R,
			sig.S,
		)
	}

	return routerABI.Pack("removeLiquidityWithPermit",
		p.Item0.Address,
		p.Item1.Address,
		params.Liquidity,
		params.Quote.Amount0Min,
		params.Quote.Amount1Min,
		params.To,
		params.Deadline,
		params.ApproveMax,
		sig.V,
		sig.R,
		sig.S,
	)
}
