package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"calndr/core/port/out"
)

type ctxKey string

const txCtxKey ctxKey = "calndr.sqlx.tx"

// sqlxTx adapts *sqlx.Tx to the out.Tx port.
type sqlxTx struct {
	tx *sqlx.Tx
}

func (t *sqlxTx) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *sqlxTx) Rollback(ctx context.Context) error { return t.tx.Rollback() }

// TxManager starts sqlx transactions and stashes them on the context
// so gateway methods can transparently join an in-flight transaction.
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) Begin(ctx context.Context) (context.Context, out.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return ctx, nil, err
	}
	wrapped := &sqlxTx{tx: tx}
	return context.WithValue(ctx, txCtxKey, tx), wrapped, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// gateway method pick whichever the current context carries.
type queryer interface {
	sqlx.ExtContext
}

func dbFromCtx(ctx context.Context, db *sqlx.DB) queryer {
	if tx, ok := ctx.Value(txCtxKey).(*sqlx.Tx); ok {
		return tx
	}
	return db
}

// txFromOut unwraps the out.Tx interface back to the concrete *sqlx.Tx
// for gateway methods that take a Tx explicitly rather than reading it
// off the context (BulkInsertTx, RepairCustodian, ReplaceAllTx).
func txFromOut(tx out.Tx) *sqlx.Tx {
	if t, ok := tx.(*sqlxTx); ok {
		return t.tx
	}
	return nil
}
