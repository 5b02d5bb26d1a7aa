package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"safeLiquidity/internal/model"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenMetaCache caches token metadata by address.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// PairTokens returns token0 and token1 as reported by the pair contract.
func PairTokens(ctx context.Context, caller Caller, pair common.Address) (common.Address, common.Address, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, pairABI, nil, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, pairABI, nil, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("token1: %w", err)
	}

	return token0, token1, nil
}

// FactoryPair asks the factory for its registered pair. The zero address
// means the pair has not been created.
func FactoryPair(ctx context.Context, caller Caller, factory, tokenA, tokenB common.Address) (common.Address, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, factory, factoryABI, nil, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// FetchPairState loads reserves and LP total supply at a block height.
// A nil block reads the latest state.
func FetchPairState(ctx context.Context, caller Caller, pair common.Address, block *big.Int) (model.PairState, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pair, pairABI, block, "getReserves")
	if err != nil {
		return model.PairState{}, err
	}
	if len(values) < 3 {
		return model.PairState{}, fmt.Errorf("getReserves: unexpected output length %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PairState{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, err := asBigInt(values[2])
	if err != nil {
		return model.PairState{}, fmt.Errorf("block timestamp: %w", err)
	}

	values, err = callMethod(ctx, caller, pair, pairABI, block, "totalSupply")
	if err != nil {
		return model.PairState{}, err
	}
	supply, err := asBigInt(values[0])
	if err != nil {
		return model.PairState{}, fmt.Errorf("total supply: %w", err)
	}

	return model.PairState{
		Reserve0:    reserve0.String(),
		Reserve1:    reserve1.String(),
		TotalSupply: supply.String(),
		BlockTime:   uint32(ts.Uint64()),
	}, nil
}

// PermitNonce reads nonces(owner) from the pair. The value must be read
// right before signing; any permit consumed in between invalidates it.
func PermitNonce(ctx context.Context, caller Caller, pair, owner common.Address) (*big.Int, error) {
	return pairUint(ctx, caller, pair, "nonces", owner)
}

// LiquidityBalance reads the LP token balance of owner.
func LiquidityBalance(ctx context.Context, caller Caller, pair, owner common.Address) (*big.Int, error) {
	return pairUint(ctx, caller, pair, "balanceOf", owner)
}

// PairName reads the LP token name used as the permit domain name.
func PairName(ctx context.Context, caller Caller, pair common.Address) (string, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return "", fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pair, pairABI, nil, "name")
	if err != nil {
		return "", err
	}
	name, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("name: unsupported type %T", values[0])
	}
	return name, nil
}

// DomainSeparator reads the pair's own EIP-712 domain separator.
func DomainSeparator(ctx context.Context, caller Caller, pair common.Address) (common.Hash, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pair, pairABI, nil, "DOMAIN_SEPARATOR")
	if err != nil {
		return common.Hash{}, err
	}
	switch v := values[0].(type) {
	case [32]byte:
		return common.Hash(v), nil
	default:
		return common.Hash{}, fmt.Errorf("domain separator: unsupported type %T", values[0])
	}
}

func pairUint(ctx context.Context, caller Caller, pair common.Address, method string, args ...interface{}) (*big.Int, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pair, pairABI, nil, method, args...)
	if err != nil {
		return nil, err
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return value, nil
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, block *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty output", method)
	}
	return values, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}

	stringABI, err := erc20StringABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, nil, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, nil, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, nil, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, nil, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, nil, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

// CachedTokenMeta returns cached metadata or fetches and caches it. Failed
// fetches are cached too so a broken token is only queried once.
func CachedTokenMeta(ctx context.Context, caller Caller, cache *TokenMetaCache, token common.Address, logger *zap.Logger) model.TokenMeta {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta
		}
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil && logger != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
