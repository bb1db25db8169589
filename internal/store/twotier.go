package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortcode/internal/metrics"
	"github.com/serroba/shortcode/internal/shortener"
	"go.uber.org/zap"
)

// TwoTier combines the cache with an optional durable store.
//
// Without a durable store the cache owns uniqueness and mappings lapse with the TTL. With one,
// the durable store owns uniqueness and never expires anything; the cache is only a warmed
// projection of it, and failing to write the cache is logged rather than returned.
type TwoTier struct {
	cache   Cache
	durable Durable
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewTwoTier creates the store. durable may be nil for cache-only deployments.
func NewTwoTier(cache Cache, durable Durable, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *TwoTier {
	return &TwoTier{
		cache:   cache,
		durable: durable,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// Durable reports whether a durable store is configured.
func (t *TwoTier) Durable() bool {
	return t.durable != nil
}

func (t *TwoTier) Lookup(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	url, err := t.cache.Get(ctx, string(code))

	switch {
	case err == nil:
		t.metrics.CacheLookup(metrics.ResultHit)

		return &shortener.ShortURL{Code: code, OriginalURL: url}, nil
	case errors.Is(err, shortener.ErrNotFound):
		t.metrics.CacheLookup(metrics.ResultMiss)
	default:
		t.metrics.CacheLookup(metrics.ResultError)

		if t.durable == nil {
			return nil, unavailable("cache get", err)
		}

		t.logger.Warn("cache read failed, reading durable store",
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	if t.durable == nil {
		return nil, shortener.ErrNotFound
	}

	shortURL, err := t.durable.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			t.metrics.DurableLookup(metrics.ResultMiss)

			return nil, err
		}

		t.metrics.DurableLookup(metrics.ResultError)

		return nil, unavailable("durable get", err)
	}

	t.metrics.DurableLookup(metrics.ResultHit)
	t.warm(ctx, shortURL)

	return shortURL, nil
}

func (t *TwoTier) Claim(ctx context.Context, shortURL *shortener.ShortURL) (bool, error) {
	if t.durable == nil {
		claimed, err := t.cache.Claim(ctx, string(shortURL.Code), shortURL.OriginalURL, t.ttl)
		if err != nil {
			return false, unavailable("cache claim", err)
		}

		return claimed, nil
	}

	claimed, err := t.durable.Insert(ctx, shortURL)
	if err != nil {
		return false, unavailable("durable insert", err)
	}

	if claimed {
		t.warm(ctx, shortURL)
	}

	return claimed, nil
}

func (t *TwoTier) FindByURL(ctx context.Context, rawURL string) (*shortener.ShortURL, error) {
	if t.durable == nil {
		return nil, shortener.ErrNotFound
	}

	shortURL, err := t.durable.GetByURL(ctx, rawURL)
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			return nil, err
		}

		return nil, unavailable("durable get by url", err)
	}

	return shortURL, nil
}

func (t *TwoTier) Refresh(ctx context.Context, shortURL *shortener.ShortURL) (bool, error) {
	if t.durable != nil {
		t.warm(ctx, shortURL)

		return true, nil
	}

	refreshed, err := t.cache.Refresh(ctx, string(shortURL.Code), shortURL.OriginalURL, t.ttl)
	if err != nil {
		return false, unavailable("cache refresh", err)
	}

	return refreshed, nil
}

// warm mirrors a durable mapping into the cache.
func (t *TwoTier) warm(ctx context.Context, shortURL *shortener.ShortURL) {
	if err := t.cache.Set(ctx, string(shortURL.Code), shortURL.OriginalURL, t.ttl); err != nil {
		t.logger.Warn("cache warm failed",
			zap.String("code", string(shortURL.Code)),
			zap.Error(err),
		)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", shortener.ErrStoreUnavailable, op, err)
}

// Compile-time check.
var _ shortener.Repository = (*TwoTier)(nil)
