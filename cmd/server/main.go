package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortcode/internal/container"
	"github.com/serroba/shortcode/internal/tracing"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.MetricsPackage(injector)
	container.RedisPackage(injector)

	if options.Durable() {
		container.PostgresPackage(injector)
	}

	container.RepositoryPackage(injector)

	if options.Events {
		container.EventsPackage(injector)
	}

	container.AnalyticsPackage(injector)
	container.ShortenerPackage(injector)
	container.HTTPPackage(injector)
}

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if err := options.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)
		redisClient := do.MustInvoke[*redis.Client](injector)

		var (
			server          *http.Server
			shutdownTracing tracing.Shutdown
		)

		hooks.OnStart(func() {
			var err error

			shutdownTracing, err = tracing.Init(context.Background(), options.OTLPEndpoint, container.ServiceName, container.Version)
			if err != nil {
				logger.Fatal("tracing setup failed", zap.Error(err))
			}

			server = &http.Server{
				Addr:              options.Addr(),
				Handler:           do.MustInvoke[http.Handler](injector),
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("domain", options.Domain),
				zap.String("strategy", options.Strategy),
				zap.Bool("durable", options.Durable()),
				zap.Bool("events", options.Events),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			// Waits for in-flight clicks before the redis client goes away.
			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			if err := redisClient.Close(); err != nil {
				logger.Error("redis close error", zap.Error(err))
			}

			if shutdownTracing != nil {
				if err := shutdownTracing(ctx); err != nil {
					logger.Error("tracing shutdown error", zap.Error(err))
				}
			}

			logger.Info("shutdown complete")
			_ = logger.Sync()
		})
	})

	cli.Run()
}
