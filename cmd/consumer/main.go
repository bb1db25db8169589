package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortcode/internal/container"
	"github.com/serroba/shortcode/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if err := options.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		injector := do.New()
		do.ProvideValue(injector, options)
		container.LoggerPackage(injector)
		container.RedisPackage(injector)

		if options.Durable() {
			container.PostgresPackage(injector)
		}

		container.ConsumerGroupPackage(injector)

		logger := do.MustInvoke[*zap.Logger](injector)
		redisClient := do.MustInvoke[*redis.Client](injector)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			group := do.MustInvoke[*messaging.ConsumerGroup](injector)

			if err := group.Start(ctx); err != nil {
				logger.Fatal("failed to start consumer group", zap.Error(err))
			}

			<-ctx.Done()
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")
			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			if err := redisClient.Close(); err != nil {
				logger.Error("redis close error", zap.Error(err))
			}

			logger.Info("shutdown complete")
			_ = logger.Sync()
		})
	})

	cli.Run()
}
