package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/shortcode/internal/messaging"
	"github.com/serroba/shortcode/internal/metrics"
	"github.com/serroba/shortcode/internal/shortener"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxPending bounds the clicks being recorded at once.
const DefaultMaxPending = 1024

// Counter increments the per-code click counter.
type Counter interface {
	IncrClicks(ctx context.Context, code string) (int64, error)
}

// Accountant records clicks in the background. The redirect never waits for it and never
// sees its failures; they are logged and counted, not retried. When maxPending clicks are
// already in flight, further clicks are dropped.
type Accountant struct {
	counter Counter
	publish messaging.Publish[URLClickedEvent]
	timeout time.Duration
	pending *semaphore.Weighted
	logger  *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewAccountant creates a click accountant. publish may be nil when click events are disabled.
func NewAccountant(
	counter Counter,
	publish messaging.Publish[URLClickedEvent],
	timeout time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Accountant {
	return &Accountant{
		counter: counter,
		publish: publish,
		timeout: timeout,
		pending: semaphore.NewWeighted(DefaultMaxPending),
		logger:  logger,
		metrics: m,
	}
}

// WithMaxPending sets how many clicks may be recorded at once. Call it before the first Record.
func (a *Accountant) WithMaxPending(n int64) *Accountant {
	if n > 0 {
		a.pending = semaphore.NewWeighted(n)
	}

	return a
}

// Record schedules a click for code and returns immediately.
func (a *Accountant) Record(ctx context.Context, code shortener.Code) {
	if !a.pending.TryAcquire(1) {
		a.metrics.Click(metrics.ResultDropped)
		a.logger.Debug("click dropped, too many pending", zap.String("code", string(code)))

		return
	}

	meta := RequestMetaFromContext(ctx)
	event := &URLClickedEvent{
		Code:      string(code),
		ClickedAt: time.Now().UTC(),
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referrer:  meta.Referrer,
	}

	// The request context is canceled once the redirect is written.
	detached := context.WithoutCancel(ctx)

	a.wg.Add(1)

	go func() {
		defer a.wg.Done()
		defer a.pending.Release(1)

		a.record(detached, event)
	}()
}

func (a *Accountant) record(ctx context.Context, event *URLClickedEvent) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := a.counter.IncrClicks(ctx, event.Code); err != nil {
		a.metrics.Click(metrics.ResultFailed)
		a.logger.Warn("failed to record click",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	} else {
		a.metrics.Click(metrics.ResultRecorded)
	}

	if a.publish == nil {
		return
	}

	if err := a.publish(ctx, event); err != nil {
		a.logger.Error("failed to publish click event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}

// Shutdown waits for in-flight clicks to finish.
func (a *Accountant) Shutdown() error {
	a.wg.Wait()

	return nil
}

// Compile-time check.
var _ shortener.ClickRecorder = (*Accountant)(nil)
