package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
)

// acceptBelow is the largest multiple of len(CodeAlphabet) that fits in a byte.
// Bytes at or above it are rejected so every symbol is equally likely.
const acceptBelow = 256 - 256%len(model.CodeAlphabet)

// randomCode draws CodeLength uniform symbols from CodeAlphabet.
func randomCode(r io.Reader) (string, error) {
	out := make([]byte, 0, model.CodeLength)
	buf := make([]byte, model.CodeLength*2)
	for len(out) < model.CodeLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= acceptBelow {
				continue
			}
			out = append(out, model.CodeAlphabet[int(b)%len(model.CodeAlphabet)])
			if len(out) == model.CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// CodeGenerator draws candidates until the store reports one as absent.
// It never reserves the code: the UNIQUE constraint on insert is the arbiter.
type CodeGenerator struct {
	codes       repository.DiscountCodeRepository
	maxAttempts int // <= 0 means unbounded
	entropy     io.Reader
}

func NewCodeGenerator(codes repository.DiscountCodeRepository, maxAttempts int) *CodeGenerator {
	return &CodeGenerator{codes: codes, maxAttempts: maxAttempts, entropy: rand.Reader}
}

// Generate returns an unused code and the number of candidates drawn.
func (g *CodeGenerator) Generate(ctx context.Context, tx repository.Tx) (string, int, error) {
	for attempt := 1; g.maxAttempts <= 0 || attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt - 1, err
		}
		candidate, err := randomCode(g.entropy)
		if err != nil {
			return "", attempt, fmt.Errorf("read entropy: %w", err)
		}
		exists, err := g.codes.Exists(ctx, tx, candidate)
		if err != nil {
			return "", attempt, err
		}
		if !exists {
			if !model.IsWellFormed(candidate) {
				return "", attempt, fmt.Errorf("%w: malformed candidate %q", domain.ErrOperationFailed, candidate)
			}
			return candidate, attempt, nil
		}
	}
	return "", g.maxAttempts, fmt.Errorf("%w after %d attempts", domain.ErrGenerationExhausted, g.maxAttempts)
}
