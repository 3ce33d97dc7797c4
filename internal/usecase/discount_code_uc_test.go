//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v4"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
	"discount-code-service/internal/usecase"
)

func newUC(repo *MockCodeRepo, tm *MockTxManager) usecase.DiscountCodeUseCase {
	return usecase.NewDiscountCodeUseCase(repo, tm, 1000, newTestLogger())
}

func TestDiscountCodeUseCase_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("should return a well-formed code that is not stored", func(t *testing.T) {
		repo := NewMockCodeRepo()
		tm := NewMockTxManager()
		uc := newUC(repo, tm)

		code, err := uc.Generate(ctx)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !model.IsWellFormed(code) {
			t.Errorf("malformed code %q", code)
		}
		if ok, _ := repo.Exists(ctx, nil, code); ok {
			t.Error("generated code must not be reserved")
		}
		if len(tm.Options) != 1 || tm.Options[0].AccessMode != pgx.ReadOnly {
			t.Errorf("expected one read-only transaction, got %+v", tm.Options)
		}
	})

	t.Run("should surface store failures", func(t *testing.T) {
		repo := NewMockCodeRepo()
		repo.Err = domain.ErrOperationFailed
		uc := newUC(repo, NewMockTxManager())

		if _, err := uc.Generate(ctx); !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got %v", err)
		}
	})
}

func TestDiscountCodeUseCase_Grant(t *testing.T) {
	ctx := context.Background()

	t.Run("should store a new unused code", func(t *testing.T) {
		repo := NewMockCodeRepo()
		uc := newUC(repo, NewMockTxManager())

		dc, err := uc.Grant(ctx, "code0000001")
		if err != nil {
			t.Fatalf("Grant failed: %v", err)
		}
		if dc.Code != "code0000001" || dc.Used || dc.ID == 0 {
			t.Errorf("unexpected granted record %+v", dc)
		}
	})

	t.Run("should accept codes outside the generated format", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo(), NewMockTxManager())
		if _, err := uc.Grant(ctx, "Summer-Sale 2024!"); err != nil {
			t.Fatalf("Grant failed: %v", err)
		}
	})

	t.Run("should conflict on a duplicate", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo("dup"), NewMockTxManager())

		_, err := uc.Grant(ctx, "dup")
		if !errors.Is(err, domain.ErrConflict) || !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrConflict wrapping ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("should reject unstorable codes without touching the store", func(t *testing.T) {
		tm := NewMockTxManager()
		uc := newUC(NewMockCodeRepo(), tm)

		for _, code := range []string{"", "a\x00b", strings.Repeat("a", model.MaxCodeBytes+1)} {
			if _, err := uc.Grant(ctx, code); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("%q: expected ErrInvalidArgument, got %v", code, err)
			}
		}
		if len(tm.Options) != 0 {
			t.Error("unstorable codes should not open a transaction")
		}
	})

	t.Run("should accept a code at the length limit", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo(), NewMockTxManager())
		if _, err := uc.Grant(ctx, strings.Repeat("a", model.MaxCodeBytes)); err != nil {
			t.Fatalf("Grant failed: %v", err)
		}
	})

	t.Run("should pass through unexpected store errors", func(t *testing.T) {
		repo := NewMockCodeRepo()
		repo.Err = domain.ErrOperationFailed
		uc := newUC(repo, NewMockTxManager())

		_, err := uc.Grant(ctx, "x")
		if !errors.Is(err, domain.ErrOperationFailed) || errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected a non-conflict store error, got %v", err)
		}
	})
}

func TestDiscountCodeUseCase_Validate(t *testing.T) {
	ctx := context.Background()
	repo := NewMockCodeRepo("unused", "used")
	_ = repo.MarkUsed(ctx, nil, "used")
	uc := newUC(repo, NewMockTxManager())

	tests := []struct {
		name       string
		code       string
		wantExists bool
		wantUsed   *bool
	}{
		{"absent", "nope", false, nil},
		{"empty", "", false, nil},
		{"contains NUL", "a\x00b", false, nil},
		{"longer than the store accepts", strings.Repeat("a", model.MaxCodeBytes+1), false, nil},
		{"unused", "unused", true, boolPtr(false)},
		{"used", "used", true, boolPtr(true)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st, err := uc.Validate(ctx, tc.code)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if st.Exists != tc.wantExists {
				t.Errorf("exists: want %v, got %v", tc.wantExists, st.Exists)
			}
			switch {
			case tc.wantUsed == nil && st.Used != nil:
				t.Errorf("used: want nil, got %v", *st.Used)
			case tc.wantUsed != nil && (st.Used == nil || *st.Used != *tc.wantUsed):
				t.Errorf("used: want %v, got %v", *tc.wantUsed, st.Used)
			}
		})
	}

	t.Run("should not change state", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, _ = uc.Validate(ctx, "unused")
		}
		dc, _ := repo.Get(ctx, nil, "unused")
		if dc.Used {
			t.Error("validate must not mark a code used")
		}
	})
}

func TestDiscountCodeUseCase_Use(t *testing.T) {
	ctx := context.Background()

	t.Run("should redeem once then conflict", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo("once"), NewMockTxManager())

		if err := uc.Use(ctx, "once"); err != nil {
			t.Fatalf("first Use failed: %v", err)
		}
		err := uc.Use(ctx, "once")
		if !errors.Is(err, domain.ErrConflict) || !errors.Is(err, domain.ErrCodeAlreadyUsed) {
			t.Fatalf("expected ErrConflict wrapping ErrCodeAlreadyUsed, got %v", err)
		}
	})

	t.Run("should report unknown and empty codes as not found", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo(), NewMockTxManager())
		for _, code := range []string{"ghost", "", "a\x00b", strings.Repeat("z", model.MaxCodeBytes+1)} {
			if err := uc.Use(ctx, code); !errors.Is(err, domain.ErrCodeNotFound) {
				t.Errorf("%q: expected ErrCodeNotFound, got %v", code, err)
			}
		}
	})

	t.Run("should return the transaction error", func(t *testing.T) {
		tm := NewMockTxManager()
		boom := errors.New("commit failed")
		tm.WithTxFunc = func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			if err := fn(ctx, repository.NoTX); err != nil {
				return err
			}
			return boom
		}
		uc := newUC(NewMockCodeRepo("c"), tm)
		if err := uc.Use(ctx, "c"); !errors.Is(err, boom) {
			t.Fatalf("expected commit error, got %v", err)
		}
	})

	t.Run("should let exactly one of many concurrent redemptions win", func(t *testing.T) {
		uc := newUC(NewMockCodeRepo("race"), NewMockTxManager())

		const n = 64
		var (
			wg                   sync.WaitGroup
			mu                   sync.Mutex
			wins, conflicts, bad int
		)
		start := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := uc.Use(ctx, "race")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, domain.ErrConflict):
					conflicts++
				default:
					bad++
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins != 1 || conflicts != n-1 || bad != 0 {
			t.Fatalf("expected 1 win and %d conflicts, got wins=%d conflicts=%d other=%d", n-1, wins, conflicts, bad)
		}
	})
}

func TestDiscountCodeUseCase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	uc := newUC(NewMockCodeRepo(), NewMockTxManager())

	code, err := uc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"absent before grant", expectStatus(ctx, uc, code, false, nil)},
		{"grant", func() error { _, err := uc.Grant(ctx, code); return err }},
		{"unused after grant", expectStatus(ctx, uc, code, true, boolPtr(false))},
		{"use", func() error { return uc.Use(ctx, code) }},
		{"used after use", expectStatus(ctx, uc, code, true, boolPtr(true))},
		{"second grant conflicts", func() error {
			if _, err := uc.Grant(ctx, code); !errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("want conflict, got %v", err)
			}
			return nil
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}
}

func expectStatus(ctx context.Context, uc usecase.DiscountCodeUseCase, code string, exists bool, used *bool) func() error {
	return func() error {
		st, err := uc.Validate(ctx, code)
		if err != nil {
			return err
		}
		if st.Exists != exists {
			return fmt.Errorf("exists: want %v, got %v", exists, st.Exists)
		}
		if (used == nil) != (st.Used == nil) || (used != nil && *used != *st.Used) {
			return fmt.Errorf("used: want %v, got %v", used, st.Used)
		}
		return nil
	}
}

func TestNewDiscountCodeUseCase_NilTxManager(t *testing.T) {
	// Without a transaction manager store calls run with NoTX.
	uc := usecase.NewDiscountCodeUseCase(NewMockCodeRepo(), nil, 10, nil)
	if _, err := uc.Grant(context.Background(), "solo"); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }
