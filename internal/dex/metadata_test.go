package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	parsed  abi.ABI
	outputs map[string][]interface{}
	calls   map[string]int
}

func newFakeCaller(t *testing.T, parsed abi.ABI) *fakeCaller {
	t.Helper()
	return &fakeCaller{parsed: parsed, outputs: map[string][]interface{}{}, calls: map[string]int{}}
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := f.parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	out, ok := f.outputs[method.Name]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return method.Outputs.Pack(out...)
}

func TestPairTokens(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	token0 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token1 := common.HexToAddress("0x2222222222222222222222222222222222222222")

	caller := newFakeCaller(t, pairABI)
	caller.outputs["token0"] = []interface{}{token0}
	caller.outputs["token1"] = []interface{}{token1}

	got0, got1, err := PairTokens(context.Background(), caller, common.HexToAddress("0x3333333333333333333333333333333333333333"))
	if err != nil {
		t.Fatalf("pair tokens: %v", err)
	}
	if got0 != token0 || got1 != token1 {
		t.Fatalf("unexpected tokens: %s %s", got0.Hex(), got1.Hex())
	}
}

func TestFetchPairState(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := newFakeCaller(t, pairABI)
	caller.outputs["getReserves"] = []interface{}{big.NewInt(5000), big.NewInt(20000), uint32(1700000000)}
	caller.outputs["totalSupply"] = []interface{}{big.NewInt(10000)}

	state, err := FetchPairState(context.Background(), caller, common.HexToAddress("0x3333333333333333333333333333333333333333"), nil)
	if err != nil {
		t.Fatalf("pair state: %v", err)
	}
	if state.Reserve0 != "5000" || state.Reserve1 != "20000" || state.TotalSupply != "10000" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.BlockTime != 1700000000 {
		t.Fatalf("unexpected block time: %d", state.BlockTime)
	}
}

func TestPermitNonceAndName(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := newFakeCaller(t, pairABI)
	caller.outputs["nonces"] = []interface{}{big.NewInt(7)}
	caller.outputs["name"] = []interface{}{"Pancake LPs"}

	pair := common.HexToAddress("0x3333333333333333333333333333333333333333")
	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")

	nonce, err := PermitNonce(context.Background(), caller, pair, owner)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected nonce: %s", nonce)
	}

	name, err := PairName(context.Background(), caller, pair)
	if err != nil {
		t.Fatalf("name: %v", err)
	}
	if name != "Pancake LPs" {
		t.Fatalf("unexpected name: %q", name)
	}
}

func TestPermitNonceReverted(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := newFakeCaller(t, pairABI)
	if _, err := PermitNonce(context.Background(), caller, common.Address{}, common.Address{}); err == nil {
		t.Fatalf("expected error for reverted call")
	}
}

func TestFactoryPair(t *testing.T) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	want := common.HexToAddress("0x5555555555555555555555555555555555555555")
	caller := newFakeCaller(t, factoryABI)
	caller.outputs["getPair"] = []interface{}{want}

	got, err := FactoryPair(context.Background(), caller,
		common.HexToAddress("0x6666666666666666666666666666666666666666"),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	)
	if err != nil {
		t.Fatalf("get pair: %v", err)
	}
	if got != want {
		t.Fatalf("unexpected pair: %s", got.Hex())
	}
}

func TestCachedTokenMeta(t *testing.T) {
	stringABI, err := erc20StringABIInstance()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	caller := newFakeCaller(t, stringABI)
	caller.outputs["decimals"] = []interface{}{uint8(18)}
	caller.outputs["symbol"] = []interface{}{"CAKE"}
	caller.outputs["name"] = []interface{}{"PancakeSwap Token"}

	token := common.HexToAddress("0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82")
	cache := NewTokenMetaCache()

	meta := CachedTokenMeta(context.Background(), caller, cache, token, nil)
	if meta.Decimals != 18 || meta.Symbol != "CAKE" || meta.Name != "PancakeSwap Token" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	CachedTokenMeta(context.Background(), caller, cache, token, nil)
	if caller.calls["decimals"] != 1 {
		t.Fatalf("expected cached metadata, decimals called %d times", caller.calls["decimals"])
	}
}
