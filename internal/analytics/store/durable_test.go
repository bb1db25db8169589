package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/shortcode/internal/analytics"
	"github.com/serroba/shortcode/internal/analytics/store"
	sharedstore "github.com/serroba/shortcode/internal/store"
	"github.com/serroba/shortcode/internal/shortener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingIncrementer struct {
	err error
}

func (f *failingIncrementer) IncrementClicks(_ context.Context, _ string) error {
	return f.err
}

func TestDurable_SaveURLClicked(t *testing.T) {
	t.Run("increments the durable counter", func(t *testing.T) {
		ctx := context.Background()
		durable := sharedstore.NewMemoryDurable()
		_, err := durable.Insert(ctx, &shortener.ShortURL{Code: "abc123", OriginalURL: "https://example.com"})
		require.NoError(t, err)

		s := store.NewDurable(durable, zap.NewNop())

		for range 3 {
			err := s.SaveURLClicked(ctx, &analytics.URLClickedEvent{Code: "abc123", ClickedAt: time.Now()})
			require.NoError(t, err)
		}

		clicks, err := durable.Clicks(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, int64(3), clicks)
	})

	t.Run("logs incrementer failure and acks the event", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		s := store.NewDurable(&failingIncrementer{err: errors.New("db down")}, zap.New(core))

		err := s.SaveURLClicked(context.Background(), &analytics.URLClickedEvent{Code: "abc123"})

		require.NoError(t, err)

		entries := logs.FilterMessage("failed to record durable click").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "abc123", entries[0].ContextMap()["code"])
		assert.Equal(t, "db down", entries[0].ContextMap()["error"])
	})
}

func TestDurable_SaveURLCreated(t *testing.T) {
	s := store.NewDurable(&failingIncrementer{}, zap.NewNop())

	err := s.SaveURLCreated(context.Background(), &analytics.URLCreatedEvent{Code: "abc123"})

	require.NoError(t, err)
}
