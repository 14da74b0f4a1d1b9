package processor

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/energyexe/harmonizer/internal/contracts"
	"github.com/energyexe/harmonizer/internal/generation"
	"github.com/energyexe/harmonizer/internal/rawdata"
)

// RawSource fetches raw telemetry rows.
type RawSource interface {
	FetchRaw(ctx context.Context, q rawdata.Query) ([]contracts.RawRecord, error)
}

// RecordSink replaces canonical rows for one scope.
type RecordSink interface {
	Replace(ctx context.Context, scope generation.Scope, records []contracts.HourlyRecord) (deleted, inserted int64, err error)
}

// Store is the transactional surface the day processor works against.
// WithSavepoint runs fn inside a nested transaction: if fn fails, only
// that source's writes roll back and the enclosing transaction survives.
type Store interface {
	RawSource
	RecordSink
	WithSavepoint(ctx context.Context, fn func(Store) error) error
}

// PgxStore backs Store with a live pgx transaction. Nested Begin calls
// on a pgx.Tx map to SAVEPOINT / RELEASE, which is what gives each
// source its own failure domain inside the day or month transaction.
type PgxStore struct {
	tx  pgx.Tx
	raw *rawdata.Repository
	gen *generation.Repository
}

// NewStore wraps a transaction.
func NewStore(tx pgx.Tx) *PgxStore {
	return &PgxStore{
		tx:  tx,
		raw: rawdata.NewRepository(tx),
		gen: generation.NewRepository(tx),
	}
}

func (s *PgxStore) FetchRaw(ctx context.Context, q rawdata.Query) ([]contracts.RawRecord, error) {
	return s.raw.FetchWindow(ctx, q)
}

func (s *PgxStore) Replace(ctx context.Context, scope generation.Scope, records []contracts.HourlyRecord) (int64, int64, error) {
	return s.gen.Replace(ctx, scope, records)
}

func (s *PgxStore) WithSavepoint(ctx context.Context, fn func(Store) error) error {
	sp, err := s.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(NewStore(sp)); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}
