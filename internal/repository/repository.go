// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrBetNotFound            = errors.New("bet not found")
	ErrOptionNotFound         = errors.New("betting option not found")
	ErrMarketNotFound         = errors.New("betting market not found")
	ErrMatchNotFound          = errors.New("match not found")
	ErrInsufficientBalance    = errors.New("insufficient chips balance")
	ErrIllegalTransition      = errors.New("illegal bet status transition")
	ErrZeroAmount             = errors.New("transaction amount must not be zero")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrBetNotDeletable        = errors.New("only pending or cancelled bets can be deleted")
)

// DB is the querier every repository runs against. It is satisfied by
// both *pgxpool.Pool and pgx.Tx, so a repository can be rebound to a
// caller-owned transaction with WithTx and nested units of work become
// savepoints.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
