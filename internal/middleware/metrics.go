package middleware

import (
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortcode/internal/metrics"
)

// Metrics records request counts, latency and in-flight requests per operation route.
func Metrics(m *metrics.Metrics) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if m == nil {
			next(ctx)

			return
		}

		route := ctx.Operation().Path
		start := time.Now()

		m.HTTPInflight.Inc()
		defer m.HTTPInflight.Dec()

		next(ctx)

		m.HTTPDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())
		m.HTTPRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(ctx.Status())).Inc()
	}
}
