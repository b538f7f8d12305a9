package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloomCache/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS block_outcomes (
	chain_id     BIGINT      NOT NULL,
	block_number BIGINT      NOT NULL,
	block_hash   TEXT        NOT NULL,
	outcome      TEXT        NOT NULL,
	reason       TEXT        NOT NULL DEFAULT '',
	candidates   INTEGER     NOT NULL DEFAULT 0,
	updated      INTEGER     NOT NULL DEFAULT 0,
	unchanged    INTEGER     NOT NULL DEFAULT 0,
	stale        INTEGER     NOT NULL DEFAULT 0,
	absent       INTEGER     NOT NULL DEFAULT 0,
	duration_ms  BIGINT      NOT NULL DEFAULT 0,
	error        TEXT        NOT NULL DEFAULT '',
	observed_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chain_id, block_number, block_hash)
);
CREATE TABLE IF NOT EXISTS effectiveness_snapshots (
	chain_id               BIGINT      NOT NULL,
	taken_at               TIMESTAMPTZ NOT NULL,
	blocks_processed       BIGINT      NOT NULL,
	true_negatives         BIGINT      NOT NULL,
	blocks_with_candidates BIGINT      NOT NULL,
	needed_calls           BIGINT      NOT NULL,
	unnecessary_calls      BIGINT      NOT NULL,
	error_calls            BIGINT      NOT NULL,
	malformed_blocks       BIGINT      NOT NULL,
	stale_discards         BIGINT      NOT NULL,
	pairs_updated          BIGINT      NOT NULL
);
CREATE TABLE IF NOT EXISTS pair_reserves (
	chain_id         BIGINT      NOT NULL,
	pair_address     TEXT        NOT NULL,
	reserve0         NUMERIC     NOT NULL,
	reserve1         NUMERIC     NOT NULL,
	updated_at_block BIGINT      NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pair_address)
);
`

// Store persists block outcomes, effectiveness snapshots and seeded
// reserves to Postgres. It is safe for concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	chainID uint64
}

func NewStore(ctx context.Context, dsn string, chainID uint64) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, chainID: chainID}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutOutcome inserts a block outcome. A repeated block is overwritten.
func (s *Store) PutOutcome(ctx context.Context, o model.BlockOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_outcomes (
			chain_id, block_number, block_hash, outcome, reason, candidates,
			updated, unchanged, stale, absent, duration_ms, error, observed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (chain_id, block_number, block_hash)
		DO UPDATE SET
			outcome = EXCLUDED.outcome,
			reason = EXCLUDED.reason,
			candidates = EXCLUDED.candidates,
			updated = EXCLUDED.updated,
			unchanged = EXCLUDED.unchanged,
			stale = EXCLUDED.stale,
			absent = EXCLUDED.absent,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			observed_at = EXCLUDED.observed_at
	`,
		int64(s.chainID),
		int64(o.BlockNumber),
		o.BlockHash,
		string(o.Outcome),
		o.Reason,
		o.Candidates,
		o.Updated,
		o.Unchanged,
		o.Stale,
		o.Absent,
		o.DurationMs,
		o.Error,
		o.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outcome %d: %w", o.BlockNumber, err)
	}
	return nil
}

// PutSnapshot appends an effectiveness snapshot.
func (s *Store) PutSnapshot(ctx context.Context, e model.Effectiveness) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO effectiveness_snapshots (
			chain_id, taken_at, blocks_processed, true_negatives, blocks_with_candidates,
			needed_calls, unnecessary_calls, error_calls, malformed_blocks, stale_discards, pairs_updated
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		int64(s.chainID),
		e.TakenAt,
		int64(e.BlocksProcessed),
		int64(e.TrueNegatives),
		int64(e.BlocksWithCandidates),
		int64(e.NeededCalls),
		int64(e.UnnecessaryCalls),
		int64(e.ErrorCalls),
		int64(e.MalformedBlocks),
		int64(e.StaleDiscards),
		int64(e.PairsUpdated),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// PutPairs upserts cached reserves. Rows only move forward in block height.
func (s *Store) PutPairs(ctx context.Context, pairs []model.PairRecord) error {
	if len(pairs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pairs {
		batch.Queue(`
			INSERT INTO pair_reserves (chain_id, pair_address, reserve0, reserve1, updated_at_block, updated_at)
			VALUES ($1, $2, $3::numeric, $4::numeric, $5, now())
			ON CONFLICT (chain_id, pair_address)
			DO UPDATE SET
				reserve0 = EXCLUDED.reserve0,
				reserve1 = EXCLUDED.reserve1,
				updated_at_block = EXCLUDED.updated_at_block,
				updated_at = now()
			WHERE pair_reserves.updated_at_block <= EXCLUDED.updated_at_block
		`,
			int64(s.chainID),
			p.Address,
			p.Reserve0,
			p.Reserve1,
			int64(p.UpdatedAtBlock),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pairs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pair reserves: %w", err)
		}
	}
	return nil
}
