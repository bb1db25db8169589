package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortcode/internal/shortener"
)

// NewPostgresPool opens a connection pool whose dials give up after timeout.
func NewPostgresPool(ctx context.Context, dsn string, timeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.ConnConfig.ConnectTimeout = timeout

	return pgxpool.NewWithConfig(ctx, cfg)
}

// PostgresStore is a PostgreSQL implementation of Durable.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore creates a new PostgreSQL-backed URL store. Every query is bounded by timeout.
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		timeout: timeout,
	}
}

func (p *PostgresStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// No conflict target: a taken code and an already shortened URL both skip the insert.
	query := `
		INSERT INTO short_urls (code, original_url, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query,
		string(shortURL.Code),
		shortURL.OriginalURL,
		shortURL.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	query := `
		SELECT code, original_url, created_at
		FROM short_urls
		WHERE code = $1
	`

	return p.getOne(ctx, query, string(code))
}

func (p *PostgresStore) GetByURL(ctx context.Context, rawURL string) (*shortener.ShortURL, error) {
	query := `
		SELECT code, original_url, created_at
		FROM short_urls
		WHERE original_url = $1
	`

	return p.getOne(ctx, query, rawURL)
}

func (p *PostgresStore) getOne(ctx context.Context, query string, arg string) (*shortener.ShortURL, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var url shortener.ShortURL

	err := p.pool.QueryRow(ctx, query, arg).Scan(
		&url.Code,
		&url.OriginalURL,
		&url.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return &url, nil
}

// IncrementClicks adds one to the durable click counter. Unknown codes are ignored.
func (p *PostgresStore) IncrementClicks(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.pool.Exec(ctx, `UPDATE short_urls SET clicks = clicks + 1 WHERE code = $1`, code)

	return err
}

// Clicks returns the durable click counter for code.
func (p *PostgresStore) Clicks(ctx context.Context, code string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var clicks int64

	err := p.pool.QueryRow(ctx, `SELECT clicks FROM short_urls WHERE code = $1`, code).Scan(&clicks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shortener.ErrNotFound
		}

		return 0, err
	}

	return clicks, nil
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.pool.Ping(ctx)
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

// Compile-time check.
var _ Durable = (*PostgresStore)(nil)
