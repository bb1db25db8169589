package store

import (
	"context"

	"github.com/serroba/shortcode/internal/analytics"
	"go.uber.org/zap"
)

// ClickIncrementer adds one click to the durable counter of a code.
type ClickIncrementer interface {
	IncrementClicks(ctx context.Context, code string) error
}

// Durable folds click events into the durable click counter.
type Durable struct {
	clicks ClickIncrementer
	logger *zap.Logger
}

// NewDurable creates an analytics store backed by the durable click counter.
func NewDurable(clicks ClickIncrementer, logger *zap.Logger) *Durable {
	return &Durable{
		clicks: clicks,
		logger: logger,
	}
}

func (d *Durable) SaveURLCreated(_ context.Context, event *analytics.URLCreatedEvent) error {
	d.logger.Debug("url created event received",
		zap.String("code", event.Code),
		zap.String("strategy", event.Strategy),
	)

	return nil
}

// SaveURLClicked always acks the event. A failed increment is logged and the click is lost.
func (d *Durable) SaveURLClicked(ctx context.Context, event *analytics.URLClickedEvent) error {
	if err := d.clicks.IncrementClicks(ctx, event.Code); err != nil {
		d.logger.Warn("failed to record durable click",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return nil
}

// Compile-time checks.
var (
	_ analytics.Store = (*Durable)(nil)
	_ analytics.Store = (*Noop)(nil)
)
