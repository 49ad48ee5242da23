package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

// TxKey is the context key under which an open transaction travels.
type TxKey struct{}

// Tx wraps sqlx.Tx. Nested BeginTx calls reuse the open transaction
// through savepoints instead of opening a second connection.
type Tx struct {
	*sqlx.Tx
	savepointID int
	ID          string
}

// GetTx returns the transaction carried by ctx, if any.
func GetTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(TxKey{}).(*Tx)
	return tx, ok
}

func savepointName(id int) string {
	return fmt.Sprintf("sp_%d", id)
}

// BeginTx opens a transaction, or a savepoint when ctx already carries
// one. The returned context must be passed to all queries that should
// run inside it.
func (db *DB) BeginTx(ctx context.Context) (context.Context, *Tx, error) {
	if tx, ok := GetTx(ctx); ok {
		tx.savepointID++
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointName(tx.savepointID)); err != nil {
			return ctx, nil, fmt.Errorf("failed to create savepoint: %w", err)
		}
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Tx: sqlxTx,
		ID: types.GenerateUUID(),
	}
	db.logger.Debugw("starting new transaction", "tx_id", tx.ID)

	return context.WithValue(ctx, TxKey{}, tx), tx, nil
}

// CommitTx releases the innermost savepoint, or commits when the tx is
// at the top level.
func (db *DB) CommitTx(ctx context.Context, tx *Tx) error {
	if tx.savepointID > 0 {
		name := savepointName(tx.savepointID)
		tx.savepointID--
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		return nil
	}
	return tx.Commit()
}

// RollbackTx rolls back to the innermost savepoint, or rolls back the
// whole transaction at the top level.
func (db *DB) RollbackTx(ctx context.Context, tx *Tx) error {
	if tx.savepointID > 0 {
		name := savepointName(tx.savepointID)
		tx.savepointID--
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return fmt.Errorf("failed to rollback to savepoint: %w", err)
		}
		return nil
	}
	return tx.Rollback()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = db.RollbackTx(txCtx, tx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := db.RollbackTx(txCtx, tx); rbErr != nil {
			db.logger.Errorw("failed to rollback transaction", "error", rbErr, "tx_id", tx.ID)
		}
		return err
	}

	return db.CommitTx(txCtx, tx)
}
