package model

import "github.com/ethereum/go-ethereum/common"

// PairItem is one side of a liquidity pair. Token is what the caller asked
// for; Address is what the factory sees (the wrapped token for native).
type PairItem struct {
	Token   common.Address
	Address common.Address
	Native  bool
}

// Pair is an ordered pair of items (Item0.Address < Item1.Address) and the
// pool address derived for it.
type Pair struct {
	Item0        PairItem
	Item1        PairItem
	Address      common.Address
	Factory      common.Address
	InitCodeHash common.Hash
}

// HasNative reports whether either side of the pair is the native coin.
func (p Pair) HasNative() bool {
	return p.Item0.Native || p.Item1.Native
}

// PairState captures the reserves and supply of a V2 pool at one block.
type PairState struct {
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	TotalSupply string `json:"total_supply"`
	BlockTime   uint32 `json:"block_timestamp_last"`
}

// TokenMeta is ERC20 metadata for one side of a pair. Fields stay empty
// when the token does not implement the call.
type TokenMeta struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Decimals uint8  `json:"decimals"`
}
