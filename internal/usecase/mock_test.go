//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- In-memory DiscountCodeRepository ----

// MockCodeRepo is a thread-safe in-memory store with the same conflict
// semantics as the Postgres repository: Insert fails on a duplicate and
// MarkUsed flips used under a single lock.
type MockCodeRepo struct {
	mu     sync.Mutex
	nextID int64
	byCode map[string]*model.DiscountCode

	ExistsCalls int
	// Err, when set, is returned by every method.
	Err error
}

// reject mirrors Postgres TEXT, which cannot hold NUL bytes.
func reject(code string) error {
	if strings.ContainsRune(code, 0) {
		return domain.ErrOperationFailed
	}
	return nil
}

var _ repository.DiscountCodeRepository = (*MockCodeRepo)(nil)

func NewMockCodeRepo(seed ...string) *MockCodeRepo {
	m := &MockCodeRepo{byCode: map[string]*model.DiscountCode{}}
	for _, c := range seed {
		m.nextID++
		m.byCode[c] = &model.DiscountCode{ID: m.nextID, Code: c}
	}
	return m
}

func (m *MockCodeRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExistsCalls++
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.byCode[code]
	return ok, nil
}

func (m *MockCodeRepo) Insert(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := reject(code); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if _, ok := m.byCode[code]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.nextID++
	dc := &model.DiscountCode{ID: m.nextID, Code: code}
	m.byCode[code] = dc
	cp := *dc
	return &cp, nil
}

func (m *MockCodeRepo) Get(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := reject(code); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	dc, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *dc
	return &cp, nil
}

func (m *MockCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := reject(code); err != nil {
		return err
	}
	if m.Err != nil {
		return m.Err
	}
	dc, ok := m.byCode[code]
	switch {
	case !ok:
		return domain.ErrNotFound
	case dc.Used:
		return domain.ErrCodeAlreadyUsed
	}
	dc.Used = true
	return nil
}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	mu      sync.Mutex
	Options []pgx.TxOptions

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx records the options it was called with and, by default, runs fn
// immediately with NoTX.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Options = append(m.Options, txOpt)
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
