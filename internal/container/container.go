package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/samber/do"
	"github.com/serroba/shortcode/internal/analytics"
	analyticsstore "github.com/serroba/shortcode/internal/analytics/store"
	"github.com/serroba/shortcode/internal/handlers"
	"github.com/serroba/shortcode/internal/health"
	"github.com/serroba/shortcode/internal/messaging"
	"github.com/serroba/shortcode/internal/metrics"
	"github.com/serroba/shortcode/internal/middleware"
	"github.com/serroba/shortcode/internal/shortener"
	"github.com/serroba/shortcode/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	ServiceName = "shortcode"
	Version     = "1.0"
)

const migrationTimeout = 30 * time.Second

func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*prometheus.Registry, error) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		return reg, nil
	})

	do.Provide(injector, func(i *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
	})
}

func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		opts := do.MustInvoke[*Options](i)

		return redis.NewClient(store.NewRedisOptions(opts.RedisAddr(), opts.RedisPassword, opts.Timeout())), nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.RedisCache, error) {
		return store.NewRedisCache(do.MustInvoke[*redis.Client](i)), nil
	})
}

// PostgresPackage provides the durable store. Only invoke it when Options.Durable is true.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), migrationTimeout)
		defer cancel()

		pool, err := store.NewPostgresPool(ctx, opts.PostgresDSN(), opts.Timeout())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		applied, err := store.EnsureSchema(ctx, pool)
		if err != nil {
			pool.Close()

			return nil, fmt.Errorf("apply schema: %w", err)
		}

		logger.Info("postgres ready",
			zap.String("host", opts.PostgresHost),
			zap.Strings("migrations", applied),
		)

		return pool, nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.PostgresStore, error) {
		opts := do.MustInvoke[*Options](i)

		return store.NewPostgresStore(do.MustInvoke[*pgxpool.Pool](i), opts.Timeout()), nil
	})
}

func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.TwoTier, error) {
		opts := do.MustInvoke[*Options](i)
		cache := do.MustInvoke[*store.RedisCache](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		if !opts.Durable() {
			logger.Info("running cache-only, mappings expire with the cache ttl")

			return store.NewTwoTier(cache, nil, opts.TTL(), logger, m), nil
		}

		durable := do.MustInvoke[*store.PostgresStore](i)

		return store.NewTwoTier(cache, durable, opts.TTL(), logger, m), nil
	})
}

// EventsPackage provides the redis stream publisher. Only invoke it when Options.Events is true.
func EventsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

func publishFunc[T any](i *do.Injector, topic string) messaging.Publish[T] {
	if !do.MustInvoke[*Options](i).Events {
		return nil
	}

	group := do.MustInvoke[*messaging.PublisherGroup](i)

	return messaging.NewPublishFunc[T](group.Publisher(), topic)
}

func AnalyticsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*analytics.Accountant, error) {
		opts := do.MustInvoke[*Options](i)

		return analytics.NewAccountant(
			do.MustInvoke[*store.RedisCache](i),
			publishFunc[analytics.URLClickedEvent](i, analytics.TopicURLClicked),
			opts.Timeout(),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})
}

func ShortenerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.Strategy, error) {
		opts := do.MustInvoke[*Options](i)
		repo := do.MustInvoke[*store.TwoTier](i)

		switch shortener.StrategyName(opts.Strategy) {
		case shortener.StrategyHash:
			hashOpts := shortener.DefaultHashOptions()
			hashOpts.Length = opts.CodeLength

			return shortener.NewHashStrategy(repo, hashOpts), nil
		case shortener.StrategyToken:
			gen, err := shortener.NewRandomGenerator(opts.CodeLength)
			if err != nil {
				return nil, err
			}

			return shortener.NewTokenStrategy(repo, gen, opts.MaxAttempts), nil
		default:
			return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
		}
	})

	do.Provide(injector, func(i *do.Injector) (*shortener.Resolver, error) {
		return shortener.NewResolver(
			do.MustInvoke[*store.TwoTier](i),
			do.MustInvoke[*analytics.Accountant](i),
		), nil
	})
}

func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		reg := do.MustInvoke[*prometheus.Registry](i)

		router := chi.NewMux()
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (*handlers.URLHandler, error) {
		opts := do.MustInvoke[*Options](i)

		return handlers.NewURLHandler(
			do.MustInvoke[shortener.Strategy](i),
			shortener.StrategyName(opts.Strategy),
			do.MustInvoke[*shortener.Resolver](i),
			opts.Domain,
			publishFunc[analytics.URLCreatedEvent](i, analytics.TopicURLCreated),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*metrics.Metrics](i),
		), nil
	})

	do.Provide(injector, func(i *do.Injector) (*health.Handler, error) {
		opts := do.MustInvoke[*Options](i)

		checks := []health.Check{
			{Name: "redis", Checker: health.NewRedisChecker(do.MustInvoke[*redis.Client](i))},
		}

		if opts.Durable() {
			checks = append(checks, health.Check{
				Name:    "postgres",
				Checker: health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i)),
			})
		}

		return health.NewHandler(Version, opts.Domain, opts.Timeout(), do.MustInvoke[*zap.Logger](i), checks...), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)

		api := humachi.New(router, huma.DefaultConfig("URL Shortener", Version))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.AccessLog(logger),
			middleware.Metrics(do.MustInvoke[*metrics.Metrics](i)),
		)

		health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))
		handlers.RegisterRoutes(api, do.MustInvoke[*handlers.URLHandler](i))

		return api, nil
	})

	do.Provide(injector, func(i *do.Injector) (http.Handler, error) {
		router := do.MustInvoke[*chi.Mux](i)

		// Routes are registered when the API is built.
		_ = do.MustInvoke[huma.API](i)

		c := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		})

		return otelhttp.NewHandler(c.Handler(router), ServiceName), nil
	})
}

// ConsumerGroupPackage provides the consumers of url.created and url.clicked.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		client := do.MustInvoke[*redis.Client](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        client,
				ConsumerGroup: opts.ConsumerGroup,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		var sink analytics.Store = analyticsstore.NewNoop(logger)
		if opts.Durable() {
			sink = analyticsstore.NewDurable(do.MustInvoke[*store.PostgresStore](i), logger)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(messaging.NewConsumer(subscriber, analytics.TopicURLCreated, analytics.URLCreatedHandler(sink), logger))
		group.Add(messaging.NewConsumer(subscriber, analytics.TopicURLClicked, analytics.URLClickedHandler(sink), logger))

		return group, nil
	})
}
