package analytics

import (
	"context"

	"github.com/serroba/shortcode/internal/messaging"
)

// Store defines the interface for persisting analytics events.
type Store interface {
	SaveURLCreated(ctx context.Context, event *URLCreatedEvent) error
	SaveURLClicked(ctx context.Context, event *URLClickedEvent) error
}

// URLCreatedHandler adapts a Store to a consumer handler for url.created.
func URLCreatedHandler(store Store) messaging.Handler[URLCreatedEvent] {
	return store.SaveURLCreated
}

// URLClickedHandler adapts a Store to a consumer handler for url.clicked.
func URLClickedHandler(store Store) messaging.Handler[URLClickedEvent] {
	return store.SaveURLClicked
}
