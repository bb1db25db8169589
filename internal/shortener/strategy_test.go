package shortener_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortcode/internal/shortener"
	"github.com/serroba/shortcode/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testURL = "https://example.com/very/long/path"
	testTTL = time.Hour
)

var errMock = errors.New("mock error")

// mockRepo scripts each Repository method; nil funcs behave like an empty store.
type mockRepo struct {
	lookup    func(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error)
	claim     func(ctx context.Context, shortURL *shortener.ShortURL) (bool, error)
	findByURL func(ctx context.Context, rawURL string) (*shortener.ShortURL, error)
	refresh   func(ctx context.Context, shortURL *shortener.ShortURL) (bool, error)
}

func (m *mockRepo) Lookup(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	if m.lookup == nil {
		return nil, shortener.ErrNotFound
	}

	return m.lookup(ctx, code)
}

func (m *mockRepo) Claim(ctx context.Context, shortURL *shortener.ShortURL) (bool, error) {
	if m.claim == nil {
		return true, nil
	}

	return m.claim(ctx, shortURL)
}

func (m *mockRepo) FindByURL(ctx context.Context, rawURL string) (*shortener.ShortURL, error) {
	if m.findByURL == nil {
		return nil, shortener.ErrNotFound
	}

	return m.findByURL(ctx, rawURL)
}

func (m *mockRepo) Refresh(ctx context.Context, shortURL *shortener.ShortURL) (bool, error) {
	if m.refresh == nil {
		return true, nil
	}

	return m.refresh(ctx, shortURL)
}

func cacheOnly(cache store.Cache) *store.TwoTier {
	return store.NewTwoTier(cache, nil, testTTL, zap.NewNop(), nil)
}

func durable() *store.TwoTier {
	return store.NewTwoTier(store.NewMemoryCache(), store.NewMemoryDurable(), testTTL, zap.NewNop(), nil)
}

// scripted returns codes in order and then repeats the last one.
func scripted(codes ...string) (shortener.CodeGenerator, *int) {
	calls := 0

	return func() string {
		code := codes[min(calls, len(codes)-1)]
		calls++

		return code
	}, &calls
}

func firstCandidates(url string, n int) []shortener.Code {
	codes := make([]shortener.Code, 0, n)

	for code := range shortener.HashCandidates(url, shortener.DefaultHashOptions()) {
		if len(codes) == n {
			break
		}

		codes = append(codes, code)
	}

	return codes
}

func TestTokenStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("claims a random code", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		gen, err := shortener.NewRandomGenerator(shortener.DefaultCodeLength)
		require.NoError(t, err)

		shortURL, err := shortener.NewTokenStrategy(repo, gen, 0).Shorten(ctx, testURL)
		require.NoError(t, err)

		got, err := repo.Lookup(ctx, shortURL.Code)
		require.NoError(t, err)
		assert.Equal(t, testURL, got.OriginalURL)
		assert.False(t, shortURL.CreatedAt.IsZero())
	})

	t.Run("retries past a taken code", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		_, _ = repo.Claim(ctx, &shortener.ShortURL{Code: "taken1", OriginalURL: "https://other.com"})
		gen, calls := scripted("taken1", "free01")

		shortURL, err := shortener.NewTokenStrategy(repo, gen, 5).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("free01"), shortURL.Code)
		assert.Equal(t, 2, *calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		_, _ = repo.Claim(ctx, &shortener.ShortURL{Code: "taken1", OriginalURL: "https://other.com"})
		gen, calls := scripted("taken1")

		_, err := shortener.NewTokenStrategy(repo, gen, 3).Shorten(ctx, testURL)

		require.ErrorIs(t, err, shortener.ErrAllocationExhausted)
		assert.Equal(t, 3, *calls)
	})

	t.Run("reuses the durable mapping of a known url", func(t *testing.T) {
		repo := durable()
		gen, err := shortener.NewRandomGenerator(shortener.DefaultCodeLength)
		require.NoError(t, err)

		strategy := shortener.NewTokenStrategy(repo, gen, 0)

		first, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		second, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("returns the winner when a concurrent request bound the url", func(t *testing.T) {
		winner := &shortener.ShortURL{Code: "winner", OriginalURL: testURL}
		lookups := 0
		repo := &mockRepo{
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) { return false, nil },
			findByURL: func(_ context.Context, _ string) (*shortener.ShortURL, error) {
				lookups++
				if lookups == 1 {
					return nil, shortener.ErrNotFound
				}

				return winner, nil
			},
		}
		gen, _ := scripted("abc123")

		shortURL, err := shortener.NewTokenStrategy(repo, gen, 5).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, winner, shortURL)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		repo := &mockRepo{
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) {
				return false, fmt.Errorf("%w: %w", shortener.ErrStoreUnavailable, errMock)
			},
		}
		gen, calls := scripted("abc123")

		_, err := shortener.NewTokenStrategy(repo, gen, 5).Shorten(ctx, testURL)

		require.ErrorIs(t, err, shortener.ErrStoreUnavailable)
		assert.Equal(t, 1, *calls)
	})

	t.Run("keeps a code whose retried claim already landed", func(t *testing.T) {
		claims := 0
		repo := &mockRepo{
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) {
				claims++

				return false, nil
			},
			lookup: func(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
				return &shortener.ShortURL{Code: code, OriginalURL: testURL}, nil
			},
		}
		gen, calls := scripted("abc123", "def456")

		shortURL, err := shortener.NewTokenStrategy(repo, gen, 5).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("abc123"), shortURL.Code)
		assert.Equal(t, 1, *calls)
		assert.Equal(t, 1, claims)
	})

	t.Run("propagates lookup errors after a lost claim", func(t *testing.T) {
		repo := &mockRepo{
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) { return false, nil },
			lookup: func(_ context.Context, _ shortener.Code) (*shortener.ShortURL, error) {
				return nil, fmt.Errorf("%w: %w", shortener.ErrStoreUnavailable, errMock)
			},
		}
		gen, _ := scripted("abc123")

		_, err := shortener.NewTokenStrategy(repo, gen, 5).Shorten(ctx, testURL)

		require.ErrorIs(t, err, shortener.ErrStoreUnavailable)
	})

	t.Run("concurrent allocations never share a code", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		gen, err := shortener.NewRandomGenerator(shortener.DefaultCodeLength)
		require.NoError(t, err)

		strategy := shortener.NewTokenStrategy(repo, gen, 0)

		const n = 200

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			codes = make(map[shortener.Code]string, n)
		)

		for i := range n {
			wg.Add(1)

			go func() {
				defer wg.Done()

				url := fmt.Sprintf("https://example.com/%d", i)

				shortURL, err := strategy.Shorten(ctx, url)
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				defer mu.Unlock()

				_, dup := codes[shortURL.Code]
				assert.False(t, dup, "code %s allocated twice", shortURL.Code)
				codes[shortURL.Code] = url
			}()
		}

		wg.Wait()
		require.Len(t, codes, n)

		for code, url := range codes {
			got, err := repo.Lookup(ctx, code)
			require.NoError(t, err)
			assert.Equal(t, url, got.OriginalURL)
		}
	})
}

func TestHashStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		strategy := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions())

		first, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		second, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		assert.Equal(t, first.Code, second.Code)
		assert.Equal(t, firstCandidates(testURL, 1)[0], first.Code)
	})

	t.Run("skips a code held by another url", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		candidates := firstCandidates(testURL, 2)
		_, _ = repo.Claim(ctx, &shortener.ShortURL{Code: candidates[0], OriginalURL: "https://other.com"})

		shortURL, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, candidates[1], shortURL.Code)
	})

	t.Run("exhausts when every candidate is taken", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		opts := shortener.HashOptions{Length: shortener.DefaultCodeLength, MaxWindows: 1, MaxSalts: 0}
		_, _ = repo.Claim(ctx, &shortener.ShortURL{Code: firstCandidates(testURL, 1)[0], OriginalURL: "https://other.com"})

		_, err := shortener.NewHashStrategy(repo, opts).Shorten(ctx, testURL)

		assert.ErrorIs(t, err, shortener.ErrAllocationExhausted)
	})

	t.Run("concurrent identical requests produce one mapping", func(t *testing.T) {
		repo := cacheOnly(store.NewMemoryCache())
		strategy := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions())

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			codes = make(map[shortener.Code]struct{})
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				shortURL, err := strategy.Shorten(ctx, testURL)
				if !assert.NoError(t, err) {
					return
				}

				mu.Lock()
				codes[shortURL.Code] = struct{}{}
				mu.Unlock()
			}()
		}

		wg.Wait()
		assert.Len(t, codes, 1)
	})

	t.Run("shortening again extends the ttl", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		cache := store.NewMemoryCacheWithClock(func() time.Time { return now })
		repo := cacheOnly(cache)
		strategy := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions())

		first, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		now = now.Add(testTTL - time.Minute)

		second, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)
		assert.Equal(t, first.Code, second.Code)

		now = now.Add(testTTL - time.Minute)

		got, err := repo.Lookup(ctx, first.Code)
		require.NoError(t, err)
		assert.Equal(t, testURL, got.OriginalURL)
	})

	t.Run("reclaims the same code after expiry", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		repo := cacheOnly(store.NewMemoryCacheWithClock(func() time.Time { return now }))
		strategy := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions())

		first, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)

		now = now.Add(testTTL)

		_, err = repo.Lookup(ctx, first.Code)
		require.ErrorIs(t, err, shortener.ErrNotFound)

		second, err := strategy.Shorten(ctx, testURL)
		require.NoError(t, err)
		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("falls through to claim when the entry expired before the refresh", func(t *testing.T) {
		claimed := false
		repo := &mockRepo{
			lookup: func(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
				return &shortener.ShortURL{Code: code, OriginalURL: testURL}, nil
			},
			refresh: func(_ context.Context, _ *shortener.ShortURL) (bool, error) { return false, nil },
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) {
				claimed = true

				return true, nil
			},
		}

		shortURL, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.True(t, claimed)
		assert.Equal(t, firstCandidates(testURL, 1)[0], shortURL.Code)
	})

	t.Run("loser of a claim race reports the winner", func(t *testing.T) {
		lookups := 0
		repo := &mockRepo{
			lookup: func(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
				lookups++
				if lookups == 1 {
					return nil, shortener.ErrNotFound
				}

				return &shortener.ShortURL{Code: code, OriginalURL: testURL}, nil
			},
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) { return false, nil },
		}

		shortURL, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, firstCandidates(testURL, 1)[0], shortURL.Code)
		assert.Equal(t, 2, lookups)
	})

	t.Run("returns the durable mapping of a known url", func(t *testing.T) {
		repo := durable()
		existing := &shortener.ShortURL{Code: "manual", OriginalURL: testURL}
		_, err := repo.Claim(ctx, existing)
		require.NoError(t, err)

		shortURL, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("manual"), shortURL.Code)
	})

	t.Run("returns a known mapping even when the cache refresh fails", func(t *testing.T) {
		existing := &shortener.ShortURL{Code: "manual", OriginalURL: testURL}
		refreshed := 0
		repo := &mockRepo{
			findByURL: func(_ context.Context, _ string) (*shortener.ShortURL, error) { return existing, nil },
			refresh: func(_ context.Context, shortURL *shortener.ShortURL) (bool, error) {
				refreshed++

				assert.Equal(t, existing, shortURL)

				return false, errMock
			},
			claim: func(_ context.Context, _ *shortener.ShortURL) (bool, error) {
				t.Fatal("a known url must not claim a new code")

				return false, nil
			},
		}

		shortURL, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		require.NoError(t, err)
		assert.Equal(t, existing, shortURL)
		assert.Equal(t, 1, refreshed)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		repo := &mockRepo{
			lookup: func(_ context.Context, _ shortener.Code) (*shortener.ShortURL, error) {
				return nil, fmt.Errorf("%w: %w", shortener.ErrStoreUnavailable, errMock)
			},
		}

		_, err := shortener.NewHashStrategy(repo, shortener.DefaultHashOptions()).Shorten(ctx, testURL)

		assert.ErrorIs(t, err, shortener.ErrStoreUnavailable)
	})
}
