package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"safeLiquidity/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pairs (
	chain_id       BIGINT      NOT NULL,
	factory        TEXT        NOT NULL,
	token0         TEXT        NOT NULL,
	token1         TEXT        NOT NULL,
	init_code_hash TEXT        NOT NULL,
	pair_address   TEXT        NOT NULL,
	verified       BOOLEAN     NOT NULL DEFAULT false,
	derived_at     TEXT        NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, factory, token0, token1)
)`

// Store caches derived pairs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the pairs table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutPairBatch implements storage.Storage.
func (s *Store) PutPairBatch(ctx context.Context, records []model.PairRecord) error {
	return s.UpsertPairs(ctx, records)
}

// UpsertPairs inserts or replaces pairs by primary key. A pair that was
// verified once stays verified.
func (s *Store) UpsertPairs(ctx context.Context, records []model.PairRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO pairs (
				chain_id, factory, token0, token1, init_code_hash, pair_address, verified, derived_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (chain_id, factory, token0, token1)
			DO UPDATE SET
				init_code_hash = EXCLUDED.init_code_hash,
				pair_address = EXCLUDED.pair_address,
				verified = pairs.verified OR EXCLUDED.verified,
				derived_at = EXCLUDED.derived_at,
				updated_at = now()
		`,
			int64(r.ChainID),
			r.Factory,
			r.Token0,
			r.Token1,
			r.InitCodeHash,
			r.Pair,
			r.Verified,
			r.DerivedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LookupPair returns a cached pair for a sorted token pair.
func (s *Store) LookupPair(ctx context.Context, chainID uint64, factory, token0, token1 string) (model.PairRecord, bool, error) {
	rec := model.PairRecord{ChainID: chainID, Factory: factory, Token0: token0, Token1: token1}
	row := s.pool.QueryRow(ctx, `
		SELECT init_code_hash, pair_address, verified, derived_at
		FROM pairs
		WHERE chain_id=$1 AND factory=$2 AND token0=$3 AND token1=$4
	`, int64(chainID), factory, token0, token1)
	if err := row.Scan(&rec.InitCodeHash, &rec.Pair, &rec.Verified, &rec.DerivedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PairRecord{}, false, nil
		}
		return model.PairRecord{}, false, err
	}
	return rec, true, nil
}
