package middleware

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
)

// AccessLog logs method, path, status and latency of every operation.
func AccessLog(logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()

		next(ctx)

		status := ctx.Status()
		fields := []zap.Field{
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.URL().Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}

		if status >= 500 {
			logger.Warn("request", fields...)

			return
		}

		logger.Info("request", fields...)
	}
}
