package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"safeLiquidity/internal/dex"
	"safeLiquidity/internal/model"
	"safeLiquidity/internal/pair"
	"safeLiquidity/internal/storage"
)

// PairLister is implemented by sinks that can read back what they already
// hold. On resume the runner seeds its duplicate filter from it.
type PairLister interface {
	ListPairs(ctx context.Context) ([]model.PairRecord, error)
}

// ErrorSink receives per-line failures.
type ErrorSink interface {
	PutErrors(errs []model.DeriveError) error
}

// RunConfig holds runtime settings for a batch derivation.
type RunConfig struct {
	Input             string
	InputDigest       string
	ChainID           uint64
	BatchSize         uint64
	Verify            bool
	Concurrency       int
	CheckpointPath    string
	CheckpointEnabled bool
}

// Runner derives pairs for a list of requests and writes them to storage.
type Runner struct {
	cfg        RunConfig
	deriver    *pair.Deriver
	caller     dex.Caller
	storage    storage.Storage
	errors     ErrorSink
	logger     *zap.Logger
	checkpoint *CheckpointStore
	seen       map[string]struct{}
	now        func() time.Time
}

// NewRunner builds a Runner with its dependencies. caller may be nil when
// verification is disabled.
func NewRunner(cfg RunConfig, deriver *pair.Deriver, caller dex.Caller, sink storage.Storage, errSink ErrorSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{
		cfg:        cfg,
		deriver:    deriver,
		caller:     caller,
		storage:    sink,
		errors:     errSink,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		seen:       make(map[string]struct{}),
		now:        time.Now,
	}
}

// Stats summarises a run.
type Stats struct {
	Derived    int
	Duplicates int
	Failed     int
	Skipped    int
}

// Run processes lines in batches, checkpointing after each batch.
func (r *Runner) Run(ctx context.Context, lines []Line) (Stats, error) {
	var stats Stats
	if r.deriver == nil {
		return stats, fmt.Errorf("deriver is nil")
	}
	if r.storage == nil {
		return stats, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Verify && r.caller == nil {
		return stats, fmt.Errorf("verification requires a chain client")
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return stats, err
	}
	switch {
	case ok && cp.Covers(r.cfg.Input, r.cfg.InputDigest):
		pending := make([]Line, 0, len(lines))
		for _, line := range lines {
			if line.Number > cp.LastProcessedLine {
				pending = append(pending, line)
			}
		}
		stats.Skipped = len(lines) - len(pending)
		lines = pending
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedLine), zap.Int("skipped", stats.Skipped))
		if err := r.seedSeen(ctx); err != nil {
			return stats, err
		}
	case ok:
		r.logger.Info("checkpoint belongs to another input, starting over", zap.String("checkpoint_input", cp.Input))
	}

	if len(lines) == 0 {
		r.logger.Info("nothing to derive")
		return stats, nil
	}

	ranges, err := SplitRange(0, uint64(len(lines)-1), r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, rg := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		chunk := lines[rg.From : rg.To+1]
		records, failures, dups, err := r.processChunk(ctx, chunk)
		if err != nil {
			return stats, err
		}

		if err := r.storage.PutPairBatch(ctx, records); err != nil {
			return stats, fmt.Errorf("store pairs: %w", err)
		}
		if r.errors != nil {
			if err := r.errors.PutErrors(failures); err != nil {
				return stats, fmt.Errorf("store errors: %w", err)
			}
		}

		last := chunk[len(chunk)-1].Number
		if err := r.checkpoint.Save(Checkpoint{
			Input:             r.cfg.Input,
			Digest:            r.cfg.InputDigest,
			LastProcessedLine: last,
		}); err != nil {
			return stats, err
		}

		stats.Derived += len(records)
		stats.Failed += len(failures)
		stats.Duplicates += dups
		r.logger.Info("batch complete",
			zap.Int("pairs", len(records)),
			zap.Int("errors", len(failures)),
			zap.Int("duplicates", dups),
			zap.Uint64("last_line", last),
		)
	}

	return stats, nil
}

func (r *Runner) processChunk(ctx context.Context, chunk []Line) ([]model.PairRecord, []model.DeriveError, int, error) {
	derivedAt := r.now().UTC().Format(time.RFC3339)

	type job struct {
		line Line
		pair model.Pair
	}

	var (
		failures []model.DeriveError
		jobs     []job
		dups     int
	)
	for _, line := range chunk {
		if line.ParseErr != nil {
			failures = append(failures, deriveError(line, line.ParseErr))
			continue
		}
		p, err := r.deriver.PairFromStrings(line.Request.TokenA, line.Request.TokenB)
		if err != nil {
			failures = append(failures, deriveError(line, err))
			continue
		}
		if r.isDuplicate(p) {
			dups++
			continue
		}
		jobs = append(jobs, job{line: line, pair: p})
	}

	verified := make([]bool, len(jobs))
	verifyErrs := make([]error, len(jobs))
	if r.cfg.Verify {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for i := range jobs {
			i := i
			g.Go(func() error {
				err := pair.Verify(gctx, r.caller, jobs[i].pair)
				switch {
				case err == nil:
					verified[i] = true
				case errors.Is(err, pair.ErrPairNotDeployed), errors.Is(err, pair.ErrPairMismatch):
					verifyErrs[i] = err
				default:
					// Transport failures abort the batch before its checkpoint is saved.
					return fmt.Errorf("verify line %d: %w", jobs[i].line.Number, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, 0, err
		}
	}

	records := make([]model.PairRecord, 0, len(jobs))
	for i, j := range jobs {
		if verifyErrs[i] != nil {
			r.logger.Warn("pair verification failed", zap.Uint64("line", j.line.Number), zap.String("pair", j.pair.Address.Hex()), zap.Error(verifyErrs[i]))
			failures = append(failures, deriveError(j.line, verifyErrs[i]))
			continue
		}
		records = append(records, model.PairRecord{
			ChainID:      r.cfg.ChainID,
			Factory:      strings.ToLower(j.pair.Factory.Hex()),
			InitCodeHash: j.pair.InitCodeHash.Hex(),
			Token0:       strings.ToLower(j.pair.Item0.Address.Hex()),
			Token1:       strings.ToLower(j.pair.Item1.Address.Hex()),
			Pair:         j.pair.Address.Hex(),
			Verified:     verified[i],
			DerivedAt:    derivedAt,
		})
	}

	return records, failures, dups, nil
}

// seedSeen marks pairs already written by an earlier, interrupted run so a
// resumed run does not append them again.
func (r *Runner) seedSeen(ctx context.Context) error {
	lister, ok := r.storage.(PairLister)
	if !ok {
		return nil
	}
	records, err := lister.ListPairs(ctx)
	if err != nil {
		return fmt.Errorf("read existing pairs: %w", err)
	}
	for _, rec := range records {
		if common.IsHexAddress(rec.Pair) {
			r.seen[common.HexToAddress(rec.Pair).Hex()] = struct{}{}
		}
	}
	r.logger.Debug("seeded duplicate filter", zap.Int("pairs", len(r.seen)))
	return nil
}

func (r *Runner) isDuplicate(p model.Pair) bool {
	id := p.Address.Hex()
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}

func deriveError(line Line, err error) model.DeriveError {
	return model.DeriveError{
		Line:   line.Number,
		TokenA: line.Request.TokenA,
		TokenB: line.Request.TokenB,
		Error:  err.Error(),
	}
}
