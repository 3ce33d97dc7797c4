package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
	"discount-code-service/internal/infra/logging"
	"discount-code-service/internal/infra/metrics"
)

// DiscountCodeUseCase is the discount code lifecycle: ABSENT -> UNUSED -> USED.
type DiscountCodeUseCase interface {
	// Generate returns a code that was not stored at generation time.
	// The code is not reserved; Grant must still be called.
	Generate(ctx context.Context) (string, error)

	// Grant stores code as unused. A duplicate fails with an error matching both
	// domain.ErrConflict and domain.ErrAlreadyExists.
	Grant(ctx context.Context, code string) (*model.DiscountCode, error)

	// Validate reports existence and used state. Absence is not an error.
	Validate(ctx context.Context, code string) (model.CodeStatus, error)

	// Use redeems code. Returns domain.ErrCodeNotFound, or an error matching
	// both domain.ErrConflict and domain.ErrCodeAlreadyUsed.
	Use(ctx context.Context, code string) error
}

var _ DiscountCodeUseCase = (*discountCodeUC)(nil)

var readOnly = pgx.TxOptions{AccessMode: pgx.ReadOnly}

type discountCodeUC struct {
	codes repository.DiscountCodeRepository
	tx    repository.TransactionManager
	gen   *CodeGenerator
	log   *zerolog.Logger
}

// NewDiscountCodeUseCase wires the lifecycle operations to the code store.
// tx and logger may be nil (store calls then run with NoTX, logging is a no-op).
func NewDiscountCodeUseCase(
	codes repository.DiscountCodeRepository,
	tx repository.TransactionManager,
	maxGenerationAttempts int,
	logger *zerolog.Logger,
) DiscountCodeUseCase {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &discountCodeUC{
		codes: codes,
		tx:    tx,
		gen:   NewCodeGenerator(codes, maxGenerationAttempts),
		log:   logger,
	}
}

func (uc *discountCodeUC) withTx(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if uc.tx == nil {
		return fn(ctx, repository.NoTX)
	}
	return uc.tx.WithTx(ctx, opt, fn)
}

func (uc *discountCodeUC) Generate(ctx context.Context) (string, error) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "DiscountCodeUC.Generate")()

	var (
		code     string
		attempts int
	)
	err := uc.withTx(ctx, readOnly, func(ctx context.Context, tx repository.Tx) error {
		var err error
		code, attempts, err = uc.gen.Generate(ctx, tx)
		return err
	})
	metrics.ObserveGenerationAttempts(attempts)
	if err != nil {
		metrics.IncCodeOperation("generate", "error")
		log.Error().Err(err).Int("attempts", attempts).Msg("code generation failed")
		return "", err
	}
	metrics.IncCodeOperation("generate", "ok")
	if attempts > 1 {
		log.Info().Int("attempts", attempts).Msg("generator hit existing codes before finding a free one")
	}
	return code, nil
}

func (uc *discountCodeUC) Grant(ctx context.Context, code string) (*model.DiscountCode, error) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "DiscountCodeUC.Grant")()

	if _, err := model.NewDiscountCode(code); err != nil {
		metrics.IncCodeOperation("grant", "invalid")
		return nil, err
	}

	var granted *model.DiscountCode
	err := uc.withTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		granted, err = uc.codes.Insert(ctx, tx, code)
		return err
	})
	switch {
	case err == nil:
		metrics.IncCodeOperation("grant", "ok")
		log.Debug().Str("code", code).Int64("id", granted.ID).Msg("code granted")
		return granted, nil
	case errors.Is(err, domain.ErrAlreadyExists):
		metrics.IncCodeOperation("grant", "conflict")
		log.Debug().Str("code", code).Msg("grant rejected: code exists")
		return nil, conflict(err)
	default:
		metrics.IncCodeOperation("grant", "error")
		log.Error().Err(err).Str("code", code).Msg("grant failed")
		return nil, err
	}
}

func (uc *discountCodeUC) Validate(ctx context.Context, code string) (model.CodeStatus, error) {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "DiscountCodeUC.Validate")()

	if !model.IsStorable(code) {
		metrics.IncCodeOperation("validate", "absent")
		return model.StatusOf(nil), nil
	}

	var found *model.DiscountCode
	err := uc.withTx(ctx, readOnly, func(ctx context.Context, tx repository.Tx) error {
		var err error
		found, err = uc.codes.Get(ctx, tx, code)
		return err
	})
	switch {
	case err == nil:
		metrics.IncCodeOperation("validate", "present")
		return model.StatusOf(found), nil
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCodeOperation("validate", "absent")
		return model.StatusOf(nil), nil
	default:
		metrics.IncCodeOperation("validate", "error")
		log.Error().Err(err).Str("code", code).Msg("validate failed")
		return model.CodeStatus{}, err
	}
}

func (uc *discountCodeUC) Use(ctx context.Context, code string) error {
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "DiscountCodeUC.Use")()

	if !model.IsStorable(code) {
		metrics.IncCodeOperation("use", "not_found")
		return domain.ErrCodeNotFound
	}

	err := uc.withTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return uc.codes.MarkUsed(ctx, tx, code)
	})
	switch {
	case err == nil:
		metrics.IncCodeOperation("use", "ok")
		log.Debug().Str("code", code).Msg("code used")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		metrics.IncCodeOperation("use", "not_found")
		return domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrCodeAlreadyUsed):
		metrics.IncCodeOperation("use", "conflict")
		log.Debug().Str("code", code).Msg("use rejected: already used")
		return conflict(err)
	default:
		metrics.IncCodeOperation("use", "error")
		log.Error().Err(err).Str("code", code).Msg("use failed")
		return err
	}
}

// conflict tags a store error as a Conflict while keeping the original cause.
func conflict(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrConflict, cause)
}
