package postgres

import (
	"context"
	"errors"

	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txCtxKey is an unexported key type for carrying a pgx.Tx in context.
type txCtxKey struct{}

// unitOfWork coordinates transactional execution against a pgx pool.
type unitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) ports.UnitOfWork {
	return &unitOfWork{pool: pool}
}

// WithinTx executes fn inside a database transaction. Nested calls reuse the
// transaction already present in ctx. The transaction is rolled back when fn
// returns an error or panics, and committed otherwise.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := uow.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// TxFromContext extracts the current pgx.Tx from ctx if present.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx, ok
}

// MustTxFromContext returns the active pgx.Tx or an error when the caller is
// not running inside WithinTx.
func MustTxFromContext(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, nil
	}
	return nil, errors.New("no transaction in context: call this repository within UnitOfWork.WithinTx")
}
