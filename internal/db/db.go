// Package db provides the PostgreSQL store gateway. Every repository accepts
// a DBTX, which both *pgxpool.Pool and pgx.Tx satisfy, so the same code runs
// inside or outside a transaction.
package db

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"plotwatch/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for every table the repositories touch.
func Schema() string {
	return schemaSQL
}

// ApplySchema executes the embedded DDL. Statements use IF NOT EXISTS so the
// call is safe to repeat.
func ApplySchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}
