package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"discount-code-service/internal/domain"
	"discount-code-service/internal/domain/model"
	"discount-code-service/internal/domain/ports/repository"
	"discount-code-service/internal/infra/metrics"
	red "discount-code-service/internal/infra/redis"
)

var _ repository.DiscountCodeRepository = (*discountCodeRepoCacheDecorator)(nil)

// discountCodeRepoCacheDecorator caches only facts that can never be revoked:
// a code that exists keeps existing, and a used code stays used. An unused
// record is never served from cache, so a stale used=false is impossible.
type discountCodeRepoCacheDecorator struct {
	inner repository.DiscountCodeRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewDiscountCodeRepoCacheDecorator(inner repository.DiscountCodeRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.DiscountCodeRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &discountCodeRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func existsKey(code string) string { return "discount_code:exists:" + code }
func usedKey(code string) string   { return "discount_code:used:" + code }

func (d *discountCodeRepoCacheDecorator) Exists(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	if d.cachedExists(ctx, code) {
		return true, nil
	}
	ok, err := d.inner.Exists(ctx, tx, code)
	if err != nil {
		return false, err
	}
	if ok {
		d.markExists(ctx, code)
	}
	return ok, nil
}

func (d *discountCodeRepoCacheDecorator) Insert(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	dc, err := d.inner.Insert(ctx, tx, code)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// The conflicting row is committed. A successful insert is not cached
		// here because the surrounding tx may still roll back.
		d.markExists(ctx, code)
	}
	return dc, err
}

func (d *discountCodeRepoCacheDecorator) Get(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	if dc, ok := d.cachedUsed(ctx, code); ok {
		return dc, nil
	}
	dc, err := d.inner.Get(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	d.markExists(ctx, code)
	if dc.Used {
		d.markUsed(ctx, dc)
	}
	return dc, nil
}

func (d *discountCodeRepoCacheDecorator) MarkUsed(ctx context.Context, tx repository.Tx, code string) error {
	if _, ok := d.cachedUsed(ctx, code); ok {
		return domain.ErrCodeAlreadyUsed
	}
	return d.inner.MarkUsed(ctx, tx, code)
}

func (d *discountCodeRepoCacheDecorator) cachedExists(ctx context.Context, code string) bool {
	_, err := d.cache.Get(ctx, existsKey(code))
	return d.hit(ctx, "code_exists", err)
}

func (d *discountCodeRepoCacheDecorator) cachedUsed(ctx context.Context, code string) (*model.DiscountCode, bool) {
	val, err := d.cache.Get(ctx, usedKey(code))
	if !d.hit(ctx, "code_used", err) {
		return nil, false
	}
	var dc model.DiscountCode
	if err := json.Unmarshal([]byte(val), &dc); err != nil || !dc.Used || dc.Code != code {
		_ = d.cache.Del(ctx, usedKey(code))
		return nil, false
	}
	return &dc, true
}

func (d *discountCodeRepoCacheDecorator) hit(ctx context.Context, cacheName string, err error) bool {
	switch {
	case err == nil:
		metrics.IncCacheRequest(cacheName, "hit")
		return true
	case errors.Is(err, red.Nil):
		metrics.IncCacheRequest(cacheName, "miss")
	default:
		metrics.IncCacheRequest(cacheName, "error")
		d.log.Warn().Err(err).Str("cache", cacheName).Msg("redis read failed; falling back to database")
	}
	return false
}

func (d *discountCodeRepoCacheDecorator) markExists(ctx context.Context, code string) {
	if err := d.cache.Set(ctx, existsKey(code), "1", d.ttl); err != nil {
		d.log.Warn().Err(err).Msg("redis write failed")
	}
}

func (d *discountCodeRepoCacheDecorator) markUsed(ctx context.Context, dc *model.DiscountCode) {
	b, err := json.Marshal(dc)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, usedKey(dc.Code), b, d.ttl); err != nil {
		d.log.Warn().Err(err).Msg("redis write failed")
	}
}
