package batch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
	"safeLiquidity/internal/pair"
	"safeLiquidity/internal/storage"
)

var errTransport = errors.New("dial tcp: connection refused")

// factoryStub answers getPair from registered and token0/token1 from
// tokens. It is read-only once built, so concurrent calls are safe.
type factoryStub struct {
	factory    common.Address
	registered map[[2]common.Address]common.Address
	tokens     map[common.Address][2]common.Address
	err        error
}

func newFactoryStub(deriver *pair.Deriver) *factoryStub {
	return &factoryStub{
		factory:    deriver.Factory(),
		registered: make(map[[2]common.Address]common.Address),
		tokens:     make(map[common.Address][2]common.Address),
	}
}

func (s *factoryStub) deploy(p model.Pair, at common.Address) {
	s.registered[[2]common.Address{p.Item0.Address, p.Item1.Address}] = at
	s.tokens[at] = [2]common.Address{p.Item0.Address, p.Item1.Address}
}

func (s *factoryStub) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	var parsed abi.ABI
	var err error
	if *msg.To == s.factory {
		parsed, err = dex.V2FactoryABI()
	} else {
		parsed, err = dex.V2PairABI()
	}
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getPair":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		key := [2]common.Address{args[0].(common.Address), args[1].(common.Address)}
		return method.Outputs.Pack(s.registered[key])
	case "token0":
		return method.Outputs.Pack(s.tokens[*msg.To][0])
	case "token1":
		return method.Outputs.Pack(s.tokens[*msg.To][1])
	}
	return nil, fmt.Errorf("unexpected method %s", method.Name)
}

const verifyInput = `{"token_a":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","token_b":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}
{"token_a":"0x6B175474E89094C44Da98b954EedeAC495271d0F","token_b":"native"}
`

func TestRunnerVerifiesConcurrently(t *testing.T) {
	deriver := testDeriver()
	good, err := deriver.PairFromStrings("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	bad, err := deriver.PairFromStrings("0x6B175474E89094C44Da98b954EedeAC495271d0F", "native")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	stub := newFactoryStub(deriver)
	stub.deploy(good, good.Address)
	stub.deploy(bad, common.HexToAddress("0x1111111111111111111111111111111111111111"))

	lines, err := ReadRequests(strings.NewReader(verifyInput))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(RunConfig{
		Input:       "pairs.jsonl",
		ChainID:     1,
		BatchSize:   10,
		Verify:      true,
		Concurrency: 4,
	}, deriver, stub, sink, sink, nil)

	stats, err := runner.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Derived != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(sink.records) != 1 || sink.records[0].Pair != good.Address.Hex() || !sink.records[0].Verified {
		t.Fatalf("unexpected records: %+v", sink.records)
	}
	if len(sink.errs) != 1 || sink.errs[0].Line != 2 || !strings.Contains(sink.errs[0].Error, "does not match") {
		t.Fatalf("unexpected errors: %+v", sink.errs)
	}
}

func TestRunnerStopsOnTransportError(t *testing.T) {
	deriver := testDeriver()
	lines, err := ReadRequests(strings.NewReader(verifyInput))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	cfg := RunConfig{
		Input:             "pairs.jsonl",
		InputDigest:       InputDigest([]byte(verifyInput)),
		ChainID:           1,
		BatchSize:         10,
		Verify:            true,
		Concurrency:       2,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}

	down := newFactoryStub(deriver)
	down.err = errTransport
	sink := &memorySink{}
	if _, err := NewRunner(cfg, deriver, down, sink, sink, nil).Run(context.Background(), lines); !errors.Is(err, errTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(sink.records) != 0 || len(sink.errs) != 0 {
		t.Fatalf("nothing should be written: %+v %+v", sink.records, sink.errs)
	}
	if _, ok, err := NewCheckpointStore(cpPath, true).Load(); err != nil || ok {
		t.Fatalf("checkpoint must not advance: %v %v", ok, err)
	}

	// Once the node is back the same lines are retried, not skipped.
	up := newFactoryStub(deriver)
	for _, line := range lines {
		p, err := deriver.PairFromStrings(line.Request.TokenA, line.Request.TokenB)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		up.deploy(p, p.Address)
	}
	stats, err := NewRunner(cfg, deriver, up, sink, sink, nil).Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if stats.Skipped != 0 || stats.Derived != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunnerResumeSkipsPairsAlreadyWritten(t *testing.T) {
	const resumeInput = `{"token_a":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","token_b":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}
{"token_a":"0x6B175474E89094C44Da98b954EedeAC495271d0F","token_b":"native"}
{"token_a":"native","token_b":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
`
	dir := t.TempDir()
	out := storage.NewJsonlStorage(filepath.Join(dir, "pairs.jsonl"))
	cpPath := filepath.Join(dir, "checkpoint.json")
	deriver := testDeriver()

	first, err := deriver.PairFromStrings("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if err := out.PutPairBatch(context.Background(), []model.PairRecord{{ChainID: 1, Pair: first.Address.Hex()}}); err != nil {
		t.Fatalf("seed output: %v", err)
	}
	digest := InputDigest([]byte(resumeInput))
	if err := NewCheckpointStore(cpPath, true).Save(Checkpoint{Input: "pairs.jsonl", Digest: digest, LastProcessedLine: 1}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	lines, err := ReadRequests(strings.NewReader(resumeInput))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	errSink := &memorySink{}
	stats, err := NewRunner(RunConfig{
		Input:             "pairs.jsonl",
		InputDigest:       digest,
		ChainID:           1,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, deriver, nil, storage.Multi{out}, errSink, nil).Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 1 || stats.Derived != 1 || stats.Duplicates != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	records, err := out.ListPairs(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records in output, got %d", len(records))
	}
}
