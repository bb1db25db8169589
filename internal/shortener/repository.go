package shortener

import "context"

// Repository is the two-tier store seen by the allocation strategies and the resolver.
type Repository interface {
	// Lookup returns the live mapping for code or ErrNotFound.
	Lookup(ctx context.Context, code Code) (*ShortURL, error)

	// Claim binds shortURL.Code to shortURL.OriginalURL if, and only if, the layer that enforces
	// uniqueness has no binding for it. The check and the write are one atomic operation.
	// It reports false when the code (or, with a durable store, the URL) is already taken.
	Claim(ctx context.Context, shortURL *ShortURL) (bool, error)

	// FindByURL returns the permanent mapping for rawURL. Without a durable store it always
	// returns ErrNotFound.
	FindByURL(ctx context.Context, rawURL string) (*ShortURL, error)

	// Refresh re-arms the cache entry of an existing mapping. It reports false when the entry
	// no longer maps to shortURL.OriginalURL. With a durable store it rewrites the cache entry,
	// logs a failed write and always reports true.
	Refresh(ctx context.Context, shortURL *ShortURL) (bool, error)
}
