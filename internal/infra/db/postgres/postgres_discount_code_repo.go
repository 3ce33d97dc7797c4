package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.DiscountCodeRepository = (*discountCodeRepo)(nil)

const uniqueViolation = "23505"

type discountCodeRepo struct {
	pool *pgxpool.Pool
}

func NewDiscountCodeRepo(pool *pgxpool.Pool) repository.DiscountCodeRepository {
	return &discountCodeRepo{pool: pool}
}

func (r *discountCodeRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM discount_codes WHERE code = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, opFailed(err)
	}
	return ok, nil
}

// Insert relies on the UNIQUE constraint on code; there is no pre-check.
func (r *discountCodeRepo) Insert(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	const q = `
INSERT INTO discount_codes (code, used)
VALUES ($1, FALSE)
RETURNING id, code, used;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	var dc model.DiscountCode
	if err := row.Scan(&dc.ID, &dc.Code, &dc.Used); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrAlreadyExists
		}
		return nil, opFailed(err)
	}
	return &dc, nil
}

func (r *discountCodeRepo) Get(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	const q = `SELECT id, code, used FROM discount_codes WHERE code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	var dc model.DiscountCode
	if err := row.Scan(&dc.ID, &dc.Code, &dc.Used); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, opFailed(err)
	}
	return &dc, nil
}

// MarkUsed flips used in one conditional UPDATE. The CTE lets the same statement
// report whether the row was updated and whether it existed in the statement
// snapshot, so a concurrent redeemer that loses the row lock sees
// updated=false, present=true and gets ErrCodeAlreadyUsed.
func (r *discountCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code string) error {
	const q = `
WITH upd AS (
  UPDATE discount_codes
     SET used = TRUE
   WHERE code = $1 AND used = FALSE
  RETURNING id
)
SELECT EXISTS (SELECT 1 FROM upd),
       EXISTS (SELECT 1 FROM discount_codes WHERE code = $1);
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return err
	}
	var updated, present bool
	if err := row.Scan(&updated, &present); err != nil {
		return opFailed(err)
	}
	switch {
	case updated:
		return nil
	case present:
		return domain.ErrCodeAlreadyUsed
	default:
		return domain.ErrNotFound
	}
}

func opFailed(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}
