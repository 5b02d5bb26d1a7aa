package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"safeLiquidity/internal/model"
)

// openTestStore connects to PG_DSN and skips the test when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertKeepsVerified(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// A chain id unique to this run keeps reruns from seeing old rows.
	chainID := uint64(time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM pairs WHERE chain_id=$1`, int64(chainID))
	})

	rec := model.PairRecord{
		ChainID:      chainID,
		Factory:      "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f",
		InitCodeHash: "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f",
		Token0:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Token1:       "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		Pair:         "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc",
		Verified:     true,
		DerivedAt:    "2024-01-01T00:00:00Z",
	}
	if err := store.PutPairBatch(ctx, []model.PairRecord{rec}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	rec.Verified = false
	rec.DerivedAt = "2024-02-01T00:00:00Z"
	if err := store.UpsertPairs(ctx, []model.PairRecord{rec}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, ok, err := store.LookupPair(ctx, chainID, rec.Factory, rec.Token0, rec.Token1)
	if err != nil || !ok {
		t.Fatalf("lookup: %v %v", ok, err)
	}
	if !got.Verified {
		t.Fatalf("verified flag was cleared: %+v", got)
	}
	if got.DerivedAt != "2024-02-01T00:00:00Z" || got.Pair != rec.Pair {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, ok, err := store.LookupPair(ctx, chainID, rec.Factory, rec.Token1, rec.Token0); err != nil || ok {
		t.Fatalf("reversed tokens should miss: %v %v", ok, err)
	}
}
