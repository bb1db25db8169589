package store

import (
	"context"
	"time"

	"github.com/serroba/shortcode/internal/shortener"
)

// Cache is the volatile, TTL-bound layer. Get returns shortener.ErrNotFound on a miss.
type Cache interface {
	// Claim stores code -> url with ttl only if code is absent, as one atomic operation.
	Claim(ctx context.Context, code, url string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, code string) (string, error)
	Set(ctx context.Context, code, url string, ttl time.Duration) error
	// Refresh re-arms ttl only while code still maps to url.
	Refresh(ctx context.Context, code, url string, ttl time.Duration) (bool, error)
	IncrClicks(ctx context.Context, code string) (int64, error)
	Clicks(ctx context.Context, code string) (int64, error)
	Ping(ctx context.Context) error
}

// Durable is the permanent system of record. Lookups return shortener.ErrNotFound on a miss.
type Durable interface {
	// Insert adds the mapping unless its code or its URL is already present.
	Insert(ctx context.Context, shortURL *shortener.ShortURL) (bool, error)
	GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error)
	GetByURL(ctx context.Context, rawURL string) (*shortener.ShortURL, error)
	IncrementClicks(ctx context.Context, code string) error
	Ping(ctx context.Context) error
}
