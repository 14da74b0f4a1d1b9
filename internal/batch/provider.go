package batch

import (
	"context"
	"fmt"

	"github.com/energyexe/harmonizer/internal/processor"
	"github.com/energyexe/harmonizer/pkg/database"
)

// PgxStoreProvider opens real database transactions for each period.
type PgxStoreProvider struct {
	db *database.DB
}

// NewPgxStoreProvider wraps a connection pool.
func NewPgxStoreProvider(db *database.DB) *PgxStoreProvider {
	return &PgxStoreProvider{db: db}
}

func (p *PgxStoreProvider) RunInTransaction(ctx context.Context, dryRun bool, fn func(processor.Store) error) error {
	tx, err := p.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once the transaction committed.
	defer tx.Rollback(ctx)

	if err := fn(processor.NewStore(tx)); err != nil {
		return err
	}
	if dryRun {
		return tx.Rollback(ctx)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
