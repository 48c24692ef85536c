package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/putYourWifeOuttaWork/fieldops-core/internal/core/port"
)

type txKey struct{}

// TxManager implements port.TxManager on top of a pgx pool. The open
// transaction travels on the context, so every repository call made inside
// the scoped function joins it.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager constructs a transaction manager for the pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx runs fn inside one transaction. A nested call reuses the
// transaction already on the context.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// executor resolves the statement target: the context transaction when one is
// open, otherwise the repository's default executor.
func executor(ctx context.Context, fallback pgExecutor) pgExecutor {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

var _ port.TxManager = (*TxManager)(nil)
