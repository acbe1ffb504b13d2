package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/maxviazov/member-search-service/internal/repository"
)

// q is a minimal query executor implemented by pgxpool.Pool, pgx.Tx and pgxmock.
type q interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is what the adapters need from a pool. *pgxpool.Pool and pgxmock.PgxPoolIface satisfy it.
type DB interface {
	q
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// getQ prefers the transaction carried by ctx, so searches issued inside WithinTx
// read the same snapshot as the writes around them.
func getQ(ctx context.Context, db DB) q {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return db
}

type txManager struct {
	db   DB
	opts pgx.TxOptions
}

// NewTxManager runs units of work in read-committed transactions.
func NewTxManager(db DB) repository.TxManager { return &txManager{db: db} }

// NewSnapshotTxManager runs units of work in repeatable-read read-only transactions.
// A search run inside one sees the same rows in its content and count queries.
func NewSnapshotTxManager(db DB) repository.TxManager {
	return &txManager{db: db, opts: pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}}
}

func (m *txManager) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := ensureDB(m.db); err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, m.opts)
	if err != nil {
		return repository.MapPgError(err)
	}
	defer func() {
		// no-op after commit; ignore rollback errors if context canceled
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return repository.MapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.MapPgError(err)
	}
	return nil
}

var _ repository.TxManager = (*txManager)(nil)

// ensureDB guards against wiring a nil pool.
func ensureDB(db DB) error {
	if db == nil {
		return errors.New("postgres db is nil")
	}
	return nil
}
