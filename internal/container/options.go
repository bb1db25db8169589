package container

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Options is read once at startup from flags and SERVICE_* environment variables.
type Options struct {
	Port         int    `default:"8888"     doc:"Port to listen on"                                  short:"p"`
	Domain       string `default:"short.ly" doc:"Domain used to build short URLs"`
	CodeLength   int    `default:"6"        doc:"Length of generated short codes"                    short:"c"`
	Strategy     string `default:"token"    doc:"Code allocation strategy: token or hash"`
	MaxAttempts  int    `default:"5"        doc:"Random draws before the token strategy gives up"`
	CacheTTL     int    `default:"86400"    doc:"Cache entry lifetime in seconds"`
	StoreTimeout int    `default:"2000"     doc:"Store connect and operation timeout in milliseconds"`

	RedisHost     string `default:"localhost" doc:"Redis host"`
	RedisPort     int    `default:"6379"      doc:"Redis port"`
	RedisPassword string `default:""          doc:"Redis password"`

	PostgresHost     string `default:""          doc:"PostgreSQL host; empty runs cache-only"`
	PostgresPort     int    `default:"5432"      doc:"PostgreSQL port"`
	PostgresUser     string `default:"shortener" doc:"PostgreSQL user"`
	PostgresPassword string `default:"shortener" doc:"PostgreSQL password"`
	PostgresDB       string `default:"shortener" doc:"PostgreSQL database"`

	Events        bool   `default:"false"     doc:"Publish url.created and url.clicked events to redis streams"`
	ConsumerGroup string `default:"analytics" doc:"Redis stream consumer group of the event consumer"`
	LogFormat     string `default:"console"   doc:"Log output format: console or json"`
	OTLPEndpoint  string `default:""          doc:"OTLP gRPC endpoint for traces; empty disables tracing"`
}

// TTL is the cache entry lifetime.
func (o *Options) TTL() time.Duration {
	return time.Duration(o.CacheTTL) * time.Second
}

// Timeout bounds store connects and single store operations.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.StoreTimeout) * time.Millisecond
}

// RedisAddr is the host:port of the cache.
func (o *Options) RedisAddr() string {
	return net.JoinHostPort(o.RedisHost, strconv.Itoa(o.RedisPort))
}

// Durable reports whether a durable store is configured.
func (o *Options) Durable() bool {
	return o.PostgresHost != ""
}

// PostgresDSN is the connection URL of the durable store.
func (o *Options) PostgresDSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.PostgresUser, o.PostgresPassword),
		Host:     net.JoinHostPort(o.PostgresHost, strconv.Itoa(o.PostgresPort)),
		Path:     o.PostgresDB,
		RawQuery: "sslmode=disable",
	}

	return dsn.String()
}

// Addr is the listen address of the HTTP server.
func (o *Options) Addr() string {
	return fmt.Sprintf(":%d", o.Port)
}

// Validate rejects settings the service cannot start with.
func (o *Options) Validate() error {
	var errs []error

	switch o.Strategy {
	case "token", "hash":
	default:
		errs = append(errs, fmt.Errorf("strategy must be token or hash, got %q", o.Strategy))
	}

	switch o.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be console or json, got %q", o.LogFormat))
	}

	if o.CodeLength < 2 || o.CodeLength > 16 {
		errs = append(errs, fmt.Errorf("code length must be between 2 and 16, got %d", o.CodeLength))
	}

	if o.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive"))
	}

	if o.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store timeout must be positive"))
	}

	return errors.Join(errs...)
}
