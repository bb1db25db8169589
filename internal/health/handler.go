package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PostgresChecker adapts a pgx pool to Checker interface.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a new Postgres health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// Ping checks Postgres connectivity.
func (p *PostgresChecker) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Check names a dependency to probe.
type Check struct {
	Name    string
	Checker Checker
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	storeConnected  = "connected"
	storeDown       = "unavailable"
)

// Handler serves the liveness probe and the service summary.
type Handler struct {
	checks  []Check
	version string
	domain  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler creates a health handler probing checks in order.
func NewHandler(version, domain string, timeout time.Duration, logger *zap.Logger, checks ...Check) *Handler {
	return &Handler{
		checks:  checks,
		version: version,
		domain:  domain,
		timeout: timeout,
		logger:  logger,
	}
}

// HealthzResponse is a plain text liveness answer.
type HealthzResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// StatusBody summarizes the service and its stores.
type StatusBody struct {
	Status  string            `doc:"healthy or unhealthy"             json:"status"`
	Version string            `doc:"Service version"                  json:"version,omitempty"`
	Domain  string            `doc:"Domain used in short URLs"        json:"domain,omitempty"`
	Stores  map[string]string `doc:"Connectivity of each store"       json:"stores"`
	Error   string            `doc:"First unavailable store, if any" json:"error,omitempty"`
}

// StatusResponse is the response for the service summary.
type StatusResponse struct {
	Status int
	Body   StatusBody
}

type probe struct {
	name string
	err  error
}

func (h *Handler) probe(ctx context.Context) []probe {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make([]probe, 0, len(h.checks))

	for _, check := range h.checks {
		err := check.Checker.Ping(ctx)
		if err != nil {
			h.logger.Warn("health check failed",
				zap.String("store", check.Name),
				zap.Error(err),
			)
		}

		results = append(results, probe{name: check.Name, err: err})
	}

	return results
}

// Healthz answers OK when every store responds.
func (h *Handler) Healthz(ctx context.Context, _ *struct{}) (*HealthzResponse, error) {
	resp := &HealthzResponse{
		Status:      http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte("OK"),
	}

	for _, p := range h.probe(ctx) {
		if p.err != nil {
			resp.Status = http.StatusServiceUnavailable
			resp.Body = []byte(p.name + " unavailable")

			break
		}
	}

	return resp, nil
}

// Summary reports version, domain and the state of each store.
func (h *Handler) Summary(ctx context.Context, _ *struct{}) (*StatusResponse, error) {
	resp := &StatusResponse{Status: http.StatusOK}
	resp.Body.Status = statusHealthy
	resp.Body.Version = h.version
	resp.Body.Domain = h.domain
	resp.Body.Stores = make(map[string]string, len(h.checks))

	for _, p := range h.probe(ctx) {
		if p.err == nil {
			resp.Body.Stores[p.name] = storeConnected

			continue
		}

		resp.Body.Stores[p.name] = storeDown

		if resp.Status == http.StatusOK {
			resp.Status = http.StatusInternalServerError
			resp.Body.Status = statusUnhealthy
			resp.Body.Error = p.name + " unavailable"
		}
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "healthz",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Liveness probe",
		Tags:        []string{"Health"},
	}, h.Healthz)

	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service summary",
		Tags:        []string{"Health"},
	}, h.Summary)
}
