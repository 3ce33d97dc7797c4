package repository

import (
	"context"

	"discount-code-service/internal/domain/model"
)

// DiscountCodeRepository is the port for the persisted discount code table.
type DiscountCodeRepository interface {
	// Exists reports whether a record with exactly this code is stored.
	Exists(ctx context.Context, tx Tx, code string) (bool, error)
	// Insert stores a new unused code. The storage uniqueness constraint decides
	// conflicts: a duplicate returns domain.ErrAlreadyExists.
	Insert(ctx context.Context, tx Tx, code string) (*model.DiscountCode, error)
	// Get returns the stored record or domain.ErrNotFound.
	Get(ctx context.Context, tx Tx, code string) (*model.DiscountCode, error)
	// MarkUsed atomically flips used from false to true.
	// Returns domain.ErrNotFound or domain.ErrCodeAlreadyUsed when it cannot.
	MarkUsed(ctx context.Context, tx Tx, code string) error
}
