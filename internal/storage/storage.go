package storage

import (
	"context"

	"safeLiquidity/internal/model"
)

// Storage defines a sink for derived pairs.
type Storage interface {
	PutPairBatch(ctx context.Context, records []model.PairRecord) error
}

// Multi fans a batch out to several sinks in order.
type Multi []Storage

func (m Multi) PutPairBatch(ctx context.Context, records []model.PairRecord) error {
	for _, s := range m {
		if err := s.PutPairBatch(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// ListPairs collects records from every sink that can list them.
func (m Multi) ListPairs(ctx context.Context) ([]model.PairRecord, error) {
	var out []model.PairRecord
	for _, s := range m {
		lister, ok := s.(interface {
			ListPairs(ctx context.Context) ([]model.PairRecord, error)
		})
		if !ok {
			continue
		}
		records, err := lister.ListPairs(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}
