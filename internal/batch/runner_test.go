package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"safeLiquidity/internal/model"
	"safeLiquidity/internal/pair"
)

type memorySink struct {
	records []model.PairRecord
	errs    []model.DeriveError
	batches int
}

func (m *memorySink) PutPairBatch(_ context.Context, records []model.PairRecord) error {
	m.batches++
	m.records = append(m.records, records...)
	return nil
}

func (m *memorySink) PutErrors(errs []model.DeriveError) error {
	m.errs = append(m.errs, errs...)
	return nil
}

const input = `{"token_a":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","token_b":"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}

{"token_a":"native","token_b":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"}
{"token_a":"0x6B175474E89094C44Da98b954EedeAC495271d0F","token_b":"native"}
not json
{"token_a":"0x1234","token_b":"native"}
`

func testDeriver() *pair.Deriver {
	return pair.NewDeriver(
		common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
		common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	)
}

func TestReadRequests(t *testing.T) {
	lines, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if lines[1].Number != 3 {
		t.Fatalf("blank line should still be counted, got number %d", lines[1].Number)
	}
	if lines[3].ParseErr == nil {
		t.Fatalf("expected parse error for line %d", lines[3].Number)
	}
}

func TestRunnerDerivesAndRecordsErrors(t *testing.T) {
	lines, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(RunConfig{Input: "pairs.jsonl", ChainID: 1, BatchSize: 2}, testDeriver(), nil, sink, sink, nil)

	stats, err := runner.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// USDC/WETH appears twice (once via native)
	if stats.Derived != 2 || stats.Duplicates != 1 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if sink.batches != 3 {
		t.Fatalf("expected 3 batches, got %d", sink.batches)
	}
	if sink.records[0].Pair != common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc").Hex() {
		t.Fatalf("unexpected usdc/weth pair: %s", sink.records[0].Pair)
	}
	if sink.records[1].Pair != common.HexToAddress("0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11").Hex() {
		t.Fatalf("unexpected dai/weth pair: %s", sink.records[1].Pair)
	}
	if sink.errs[0].Line != 5 || sink.errs[1].Line != 6 {
		t.Fatalf("unexpected error lines: %+v", sink.errs)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	lines, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")

	store := NewCheckpointStore(cpPath, true)
	if err := store.Save(Checkpoint{Input: "pairs.jsonl", Digest: InputDigest([]byte(input)), LastProcessedLine: 3}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(RunConfig{
		Input:             "pairs.jsonl",
		InputDigest:       InputDigest([]byte(input)),
		ChainID:           1,
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, testDeriver(), nil, sink, sink, nil)

	stats, err := runner.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 2 || stats.Derived != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	cp, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: %v %v", ok, err)
	}
	if cp.LastProcessedLine != 6 || cp.Digest != InputDigest([]byte(input)) {
		t.Fatalf("unexpected checkpoint: %+v", cp)
	}
}

func TestRunnerIgnoresCheckpointOfOtherInput(t *testing.T) {
	lines, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(cpPath, true).Save(Checkpoint{Input: "other.jsonl", LastProcessedLine: 100}); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(RunConfig{
		Input:             "pairs.jsonl",
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, testDeriver(), nil, sink, sink, nil)

	stats, err := runner.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 0 || stats.Derived != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRunnerVerifyRequiresCaller(t *testing.T) {
	runner := NewRunner(RunConfig{BatchSize: 1, Verify: true}, testDeriver(), nil, &memorySink{}, nil, nil)
	if _, err := runner.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error without chain client")
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	store := NewCheckpointStore(path, false)
	if err := store.Save(Checkpoint{Input: "x", LastProcessedLine: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no checkpoint file, got %v", err)
	}
}

func TestRunnerIgnoresCheckpointOfEditedInput(t *testing.T) {
	lines, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	stale := Checkpoint{Input: "pairs.jsonl", Digest: InputDigest([]byte("older contents")), LastProcessedLine: 4}
	if err := NewCheckpointStore(cpPath, true).Save(stale); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	sink := &memorySink{}
	runner := NewRunner(RunConfig{
		Input:             "pairs.jsonl",
		InputDigest:       InputDigest([]byte(input)),
		BatchSize:         10,
		CheckpointPath:    cpPath,
		CheckpointEnabled: true,
	}, testDeriver(), nil, sink, sink, nil)

	stats, err := runner.Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 0 || stats.Derived != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestCheckpointRejectsBadDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	if err := os.WriteFile(path, []byte(`{"input":"a","digest":"0x1234","last_processed_line":2}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := NewCheckpointStore(path, true).Load(); err == nil {
		t.Fatalf("expected error for short digest")
	}
}
