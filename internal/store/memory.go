package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortcode/internal/shortener"
)

// Clock returns the current time.
type Clock func() time.Time

type memoryEntry struct {
	url       string
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is an in-memory implementation of Cache for tests and local runs.
// Expired entries are treated as absent.
type MemoryCache struct {
	mu     sync.Mutex
	urls   map[string]memoryEntry // code -> url
	clicks map[string]int64
	now    Clock
}

// NewMemoryCache creates a new in-memory cache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock creates a new in-memory cache that reads time from now.
func NewMemoryCacheWithClock(now Clock) *MemoryCache {
	return &MemoryCache{
		urls:   make(map[string]memoryEntry),
		clicks: make(map[string]int64),
		now:    now,
	}
}

func (m *MemoryCache) Claim(_ context.Context, code, url string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(code); ok {
		return false, nil
	}

	m.urls[code] = m.entry(url, ttl)

	return true, nil
}

func (m *MemoryCache) Get(_ context.Context, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(code)
	if !ok {
		return "", shortener.ErrNotFound
	}

	return entry.url, nil
}

func (m *MemoryCache) Set(_ context.Context, code, url string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.urls[code] = m.entry(url, ttl)

	return nil
}

func (m *MemoryCache) Refresh(_ context.Context, code, url string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(code)
	if !ok || entry.url != url {
		return false, nil
	}

	m.urls[code] = m.entry(url, ttl)

	return true, nil
}

func (m *MemoryCache) IncrClicks(_ context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks[code]++

	return m.clicks[code], nil
}

func (m *MemoryCache) Clicks(_ context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.clicks[code], nil
}

func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}

// live must be called with mu held.
func (m *MemoryCache) live(code string) (memoryEntry, bool) {
	entry, ok := m.urls[code]
	if !ok {
		return memoryEntry{}, false
	}

	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.urls, code)

		return memoryEntry{}, false
	}

	return entry, true
}

func (m *MemoryCache) entry(url string, ttl time.Duration) memoryEntry {
	entry := memoryEntry{url: url}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	return entry
}

// MemoryDurable is an in-memory implementation of Durable for tests and local runs.
type MemoryDurable struct {
	mu     sync.RWMutex
	byCode map[shortener.Code]*shortener.ShortURL
	byURL  map[string]shortener.Code
	clicks map[string]int64
}

// NewMemoryDurable creates a new in-memory durable store.
func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{
		byCode: make(map[shortener.Code]*shortener.ShortURL),
		byURL:  make(map[string]shortener.Code),
		clicks: make(map[string]int64),
	}
}

func (m *MemoryDurable) Insert(_ context.Context, shortURL *shortener.ShortURL) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCode[shortURL.Code]; ok {
		return false, nil
	}

	if _, ok := m.byURL[shortURL.OriginalURL]; ok {
		return false, nil
	}

	stored := *shortURL
	m.byCode[shortURL.Code] = &stored
	m.byURL[shortURL.OriginalURL] = shortURL.Code

	return true, nil
}

func (m *MemoryDurable) GetByCode(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.byCode[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	found := *stored

	return &found, nil
}

func (m *MemoryDurable) GetByURL(ctx context.Context, rawURL string) (*shortener.ShortURL, error) {
	m.mu.RLock()
	code, ok := m.byURL[rawURL]
	m.mu.RUnlock()

	if !ok {
		return nil, shortener.ErrNotFound
	}

	return m.GetByCode(ctx, code)
}

func (m *MemoryDurable) IncrementClicks(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCode[shortener.Code(code)]; ok {
		m.clicks[code]++
	}

	return nil
}

// Clicks returns the durable click counter for code.
func (m *MemoryDurable) Clicks(_ context.Context, code string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.clicks[code], nil
}

func (m *MemoryDurable) Ping(_ context.Context) error {
	return nil
}

// Compile-time checks.
var (
	_ Cache   = (*MemoryCache)(nil)
	_ Durable = (*MemoryDurable)(nil)
)
