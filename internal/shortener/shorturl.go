package shortener

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a code has no live mapping.
	ErrNotFound = errors.New("short url not found")

	// ErrInvalidURL is returned for anything that is not an absolute http(s) URL with a host.
	ErrInvalidURL = errors.New("invalid url")

	// ErrAllocationExhausted is returned when no candidate code could be claimed.
	ErrAllocationExhausted = errors.New("short code allocation exhausted")

	// ErrStoreUnavailable wraps connection and timeout failures of the cache or durable store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Code represents a short URL code.
type Code string

// ShortURL represents a shortened URL entity.
type ShortURL struct {
	Code        Code
	OriginalURL string
	CreatedAt   time.Time // zero when the mapping was read from the cache
}
