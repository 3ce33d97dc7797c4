package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"discount-code-service/internal/domain/ports/repository"
)

// schemaLockKey serializes schema bootstrap across instances starting at once.
const schemaLockKey int64 = 0x64697363 // "disc"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS discount_codes (
  id   BIGSERIAL PRIMARY KEY,
  code TEXT      NOT NULL UNIQUE,
  used BOOLEAN   NOT NULL DEFAULT FALSE
);`

// EnsureSchema creates the discount_codes table if it is absent.
// Running it against an initialized database is a no-op.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tm := NewTxManager(pool)
	return tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := execSQL(ctx, pool, tx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey); err != nil {
			return fmt.Errorf("schema lock: %w", err)
		}
		if _, err := execSQL(ctx, pool, tx, schemaSQL); err != nil {
			return fmt.Errorf("create discount_codes: %w", err)
		}
		return nil
	})
}
