package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBTX is a common interface for *sqlx.DB and *sqlx.Tx
// This allows repositories to work with both regular connections and transactions
// enabling full transactional isolation in tests
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// txBeginner is implemented by *sqlx.DB.
type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

var (
	_ DBTX       = (*sqlx.DB)(nil)
	_ DBTX       = (*sqlx.Tx)(nil)
	_ txBeginner = (*sqlx.DB)(nil)
)
