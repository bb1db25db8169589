package shortener

import "context"

// ClickRecorder counts successful resolutions. Record must return without waiting for the
// increment to be applied, and must not report failures to the caller.
type ClickRecorder interface {
	Record(ctx context.Context, code Code)
}

// Resolver maps codes back to their original URLs.
type Resolver struct {
	store  Repository
	clicks ClickRecorder
}

// NewResolver creates a resolver. clicks may be nil.
func NewResolver(store Repository, clicks ClickRecorder) *Resolver {
	return &Resolver{
		store:  store,
		clicks: clicks,
	}
}

// Resolve returns the mapping for code, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, code Code) (*ShortURL, error) {
	shortURL, err := r.store.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	if r.clicks != nil {
		r.clicks.Record(ctx, code)
	}

	return shortURL, nil
}
