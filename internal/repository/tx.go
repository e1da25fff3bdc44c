package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/pkg/database"
)

type txKey struct{}

// TxManager runs a unit of work inside a single database transaction.
// Repositories called with the derived context join that transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise. Nested calls
// reuse the outer transaction.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return ok
}

// base gives repositories transparent access to the ambient transaction.
type base struct {
	db *sqlx.DB
}

func (b base) conn(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return b.db
}

func (b base) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return database.Translate(sqlx.GetContext(ctx, b.conn(ctx), dest, query, args...))
}

func (b base) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, b.conn(ctx), dest, query, args...)
}

func (b base) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := b.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, database.Translate(err)
	}
	return res.RowsAffected()
}

func (b base) namedExec(ctx context.Context, query string, arg interface{}) error {
	_, err := sqlx.NamedExecContext(ctx, b.conn(ctx), query, arg)
	return database.Translate(err)
}
