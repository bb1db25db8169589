package shortener

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"
)

// Strategy defines the interface for URL shortening strategies.
type Strategy interface {
	Shorten(ctx context.Context, url string) (*ShortURL, error)
}

// StrategyName identifies a shortening strategy in configuration.
type StrategyName string

const (
	StrategyToken StrategyName = "token"
	StrategyHash  StrategyName = "hash"
)

// DefaultMaxAttempts bounds the random draws of TokenStrategy.
const DefaultMaxAttempts = 5

// TokenStrategy claims uniformly random codes until one is free.
type TokenStrategy struct {
	store        Repository
	generateCode CodeGenerator
	maxAttempts  int
}

// NewTokenStrategy creates a new token-based shortening strategy.
func NewTokenStrategy(store Repository, generator CodeGenerator, maxAttempts int) *TokenStrategy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &TokenStrategy{
		store:        store,
		generateCode: generator,
		maxAttempts:  maxAttempts,
	}
}

func (s *TokenStrategy) Shorten(ctx context.Context, url string) (*ShortURL, error) {
	existing, err := s.store.FindByURL(ctx, url)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	attempts := 0

	for code := range RandomCandidates(s.generateCode) {
		attempts++

		shortURL := newShortURL(code, url)

		claimed, err := s.store.Claim(ctx, shortURL)
		if err != nil {
			return nil, err
		}

		if claimed {
			return shortURL, nil
		}

		// A claim retried after a timeout reports false when the first write landed.
		current, err := s.store.Lookup(ctx, code)
		if err == nil && current.OriginalURL == url {
			return current, nil
		}

		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		// With a durable store the claim also fails when the URL itself is already bound.
		existing, err := s.store.FindByURL(ctx, url)
		if err == nil {
			return existing, nil
		}

		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		if attempts == s.maxAttempts {
			break
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, attempts)
}

// HashStrategy derives codes from the URL digest so that the same URL keeps the same code.
type HashStrategy struct {
	store Repository
	opts  HashOptions
}

// NewHashStrategy creates a new hash-based shortening strategy.
func NewHashStrategy(store Repository, opts HashOptions) *HashStrategy {
	return &HashStrategy{
		store: store,
		opts:  opts,
	}
}

func (s *HashStrategy) Shorten(ctx context.Context, url string) (*ShortURL, error) {
	existing, err := s.store.FindByURL(ctx, url)
	if err == nil {
		// FindByURL only succeeds with a durable store. Its Refresh re-warms the cache, logs a
		// failed warm itself and reports no error, so the mapping is returned regardless.
		_, _ = s.store.Refresh(ctx, existing)

		return existing, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.allocate(ctx, url, HashCandidates(url, s.opts))
}

func (s *HashStrategy) allocate(ctx context.Context, url string, candidates iter.Seq[Code]) (*ShortURL, error) {
	tried := 0

	for code := range candidates {
		tried++

		shortURL, err := s.settle(ctx, code, url)
		if err != nil {
			return nil, err
		}

		if shortURL != nil {
			return shortURL, nil
		}
	}

	return nil, fmt.Errorf("%w after %d candidates", ErrAllocationExhausted, tried)
}

// settle resolves a single candidate. It returns nil, nil when the code belongs to another URL.
//
// The read before the claim is not authoritative: two requests for the same new URL can both
// see the code as free. Only one of their claims succeeds, and the loser then sees its own URL
// behind the code and reports success.
func (s *HashStrategy) settle(ctx context.Context, code Code, url string) (*ShortURL, error) {
	current, err := s.store.Lookup(ctx, code)

	switch {
	case err == nil && current.OriginalURL == url:
		refreshed, err := s.store.Refresh(ctx, current)
		if err != nil {
			return nil, err
		}

		if refreshed {
			return current, nil
		}
	case err == nil:
		return nil, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	shortURL := newShortURL(code, url)

	claimed, err := s.store.Claim(ctx, shortURL)
	if err != nil {
		return nil, err
	}

	if claimed {
		return shortURL, nil
	}

	current, err = s.store.Lookup(ctx, code)
	if err == nil && current.OriginalURL == url {
		return current, nil
	}

	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	existing, err := s.store.FindByURL(ctx, url)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return nil, nil
}

func newShortURL(code Code, url string) *ShortURL {
	return &ShortURL{
		Code:        code,
		OriginalURL: url,
		CreatedAt:   time.Now().UTC(),
	}
}
