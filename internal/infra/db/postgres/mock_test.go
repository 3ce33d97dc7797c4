//go:build !integration

package postgres

import (
	"context"
	"sync"
	"time"

	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
	red "discount-code-service/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCodeRepo mocks the database repository that the decorator wraps.
type mockInnerCodeRepo struct {
	ExistsFunc   func(ctx context.Context, tx repository.Tx, code string) (bool, error)
	InsertFunc   func(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error)
	GetFunc      func(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error)
	MarkUsedFunc func(ctx context.Context, tx repository.Tx, code string) error
}

var _ repository.DiscountCodeRepository = &mockInnerCodeRepo{}

func (m *mockInnerCodeRepo) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	return m.ExistsFunc(ctx, tx, code)
}
func (m *mockInnerCodeRepo) Insert(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	return m.InsertFunc(ctx, tx, code)
}
func (m *mockInnerCodeRepo) Get(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	return m.GetFunc(ctx, tx, code)
}
func (m *mockInnerCodeRepo) MarkUsed(ctx context.Context, tx repository.Tx, code string) error {
	return m.MarkUsedFunc(ctx, tx, code)
}

// mockRedisClient is a map-backed Redis stand-in. GetErr, when set, is
// returned by every Get to simulate an unreachable server.
type mockRedisClient struct {
	mu     sync.Mutex
	data   map[string]string
	GetErr error
}

var _ red.RedisClient = &mockRedisClient{}

func newMockRedis() *mockRedisClient {
	return &mockRedisClient{data: map[string]string{}}
}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", red.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return 0, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
