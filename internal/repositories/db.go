package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a lookup by id matches no row
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// can run standalone or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsUndefinedTable reports whether err is Postgres 42P01 for one of the given tables.
// With no tables given any undefined table matches.
func IsUndefinedTable(err error, tables ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42P01" {
		return false
	}
	if len(tables) == 0 {
		return true
	}
	for _, table := range tables {
		if strings.Contains(pgErr.Message, table) {
			return true
		}
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
