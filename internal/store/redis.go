package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortcode/internal/shortener"
)

// refreshScript re-arms the TTL of a key only while it still holds the expected URL.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewRedisOptions returns client options with bounded timeouts. Transient connection failures
// are retried by the client with exponential backoff between 200ms and 2s.
func NewRedisOptions(addr, password string, timeout time.Duration) *redis.Options {
	return &redis.Options{
		Addr:            addr,
		Password:        password,
		DialTimeout:     timeout,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		PoolTimeout:     timeout,
		MaxRetries:      3,
		MinRetryBackoff: 200 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	}
}

// RedisCache is a Redis implementation of Cache.
type RedisCache struct {
	client      *redis.Client
	prefix      string // "url:" for code->url (string keys)
	clickPrefix string // "clicks:" for per-code counters, no TTL
}

// NewRedisCache creates a new Redis-backed cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:      client,
		prefix:      "url:",
		clickPrefix: "clicks:",
	}
}

func (r *RedisCache) Claim(ctx context.Context, code, url string, ttl time.Duration) (bool, error) {
	// SET key url NX PX ttl
	return r.client.SetNX(ctx, r.prefix+code, url, ttl).Result()
}

func (r *RedisCache) Get(ctx context.Context, code string) (string, error) {
	url, err := r.client.Get(ctx, r.prefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", shortener.ErrNotFound
		}

		return "", err
	}

	return url, nil
}

func (r *RedisCache) Set(ctx context.Context, code, url string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+code, url, ttl).Err()
}

func (r *RedisCache) Refresh(ctx context.Context, code, url string, ttl time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, r.client, []string{r.prefix + code}, url, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *RedisCache) IncrClicks(ctx context.Context, code string) (int64, error) {
	return r.client.Incr(ctx, r.clickPrefix+code).Result()
}

func (r *RedisCache) Clicks(ctx context.Context, code string) (int64, error) {
	n, err := r.client.Get(ctx, r.clickPrefix+code).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, err
	}

	return n, nil
}

// Ping checks Redis connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Compile-time check.
var _ Cache = (*RedisCache)(nil)
