package pair

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"safeLiquidity/internal/model"
)

// NativeMarker is accepted in place of a token address to mean the chain's
// native coin.
const NativeMarker = "native"

// SortTokens orders two token addresses the same way UniswapV2-style
// factories do: ascending by raw bytes.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, ErrIdenticalAddresses
	}
	token0, token1 := tokenA, tokenB
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		token0, token1 = tokenB, tokenA
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroAddress
	}
	return token0, token1, nil
}

// Salt returns keccak256(token0 || token1) for an already sorted pair.
func Salt(token0, token1 common.Address) common.Hash {
	return crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
}

// DeriveAddress computes the CREATE2 address of the pool the factory
// deploys for tokenA/tokenB. The result does not depend on argument order.
func DeriveAddress(tokenA, tokenB, factory common.Address, initCodeHash common.Hash) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.CreateAddress2(factory, Salt(token0, token1), initCodeHash.Bytes()), nil
}

// Deriver derives pairs for a single factory deployment.
type Deriver struct {
	factory       common.Address
	initCodeHash  common.Hash
	wrappedNative common.Address
}

// NewDeriver builds a Deriver. wrappedNative may be zero when native
// tokens are not used.
func NewDeriver(factory common.Address, initCodeHash common.Hash, wrappedNative common.Address) *Deriver {
	return &Deriver{
		factory:       factory,
		initCodeHash:  initCodeHash,
		wrappedNative: wrappedNative,
	}
}

// Factory returns the factory address.
func (d *Deriver) Factory() common.Address {
	return d.factory
}

// InitCodeHash returns the pair init code hash.
func (d *Deriver) InitCodeHash() common.Hash {
	return d.initCodeHash
}

// ResolveItem maps a token to its on-chain address. The zero address is
// treated as the native coin and resolved to the wrapped native token.
func (d *Deriver) ResolveItem(token common.Address) (model.PairItem, error) {
	if token != (common.Address{}) {
		return model.PairItem{Token: token, Address: token}, nil
	}
	if d.wrappedNative == (common.Address{}) {
		return model.PairItem{}, ErrNoWrappedNative
	}
	return model.PairItem{Token: token, Address: d.wrappedNative, Native: true}, nil
}

// Pair builds the ordered pair for tokenA/tokenB and its pool address.
func (d *Deriver) Pair(tokenA, tokenB common.Address) (model.Pair, error) {
	itemA, err := d.ResolveItem(tokenA)
	if err != nil {
		return model.Pair{}, err
	}
	itemB, err := d.ResolveItem(tokenB)
	if err != nil {
		return model.Pair{}, err
	}

	token0, _, err := SortTokens(itemA.Address, itemB.Address)
	if err != nil {
		return model.Pair{}, err
	}
	item0, item1 := itemA, itemB
	if token0 != itemA.Address {
		item0, item1 = itemB, itemA
	}

	return model.Pair{
		Item0:        item0,
		Item1:        item1,
		Address:      crypto.CreateAddress2(d.factory, Salt(item0.Address, item1.Address), d.initCodeHash.Bytes()),
		Factory:      d.factory,
		InitCodeHash: d.initCodeHash,
	}, nil
}

// PairFromStrings parses two token inputs and builds the pair. Each input
// is a hex address or NativeMarker.
func (d *Deriver) PairFromStrings(tokenA, tokenB string) (model.Pair, error) {
	a, err := ParseToken(tokenA)
	if err != nil {
		return model.Pair{}, err
	}
	b, err := ParseToken(tokenB)
	if err != nil {
		return model.Pair{}, err
	}
	return d.Pair(a, b)
}

// ParseToken parses a hex address or NativeMarker. The native coin is
// returned as the zero address.
func ParseToken(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, NativeMarker) {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}
	return common.HexToAddress(input), nil
}
