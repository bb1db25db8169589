package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortcode/internal/analytics"
	"github.com/serroba/shortcode/internal/messaging"
	"github.com/serroba/shortcode/internal/metrics"
	"github.com/serroba/shortcode/internal/shortener"
	"go.uber.org/zap"
)

// Resolver maps a code back to its mapping.
type Resolver interface {
	Resolve(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error)
}

// URLHandler handles URL shortening operations.
type URLHandler struct {
	strategy          shortener.Strategy
	strategyName      shortener.StrategyName
	resolver          Resolver
	domain            string
	publishURLCreated messaging.Publish[analytics.URLCreatedEvent]
	logger            *zap.Logger
	metrics           *metrics.Metrics
}

// NewURLHandler creates a URL handler. publishURLCreated may be nil when events are disabled.
func NewURLHandler(
	strategy shortener.Strategy,
	strategyName shortener.StrategyName,
	resolver Resolver,
	domain string,
	publishURLCreated messaging.Publish[analytics.URLCreatedEvent],
	logger *zap.Logger,
	m *metrics.Metrics,
) *URLHandler {
	return &URLHandler{
		strategy:          strategy,
		strategyName:      strategyName,
		resolver:          resolver,
		domain:            domain,
		publishURLCreated: publishURLCreated,
		logger:            logger,
		metrics:           m,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	url, err := decodeURL(req.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest(errInvalidURLMessage)
	}

	shortURL, err := h.strategy.Shorten(ctx, url)
	if err != nil {
		return nil, h.shortenError(err)
	}

	h.metrics.Allocation(string(h.strategyName), metrics.ResultCreated)
	h.publishCreated(ctx, shortURL)

	fullShortURL := fmt.Sprintf("http://%s/%s", h.domain, shortURL.Code)

	resp := &CreateShortURLResponse{}
	resp.Location = fullShortURL
	resp.Body.ShortURL = fullShortURL
	resp.Body.OriginalURL = shortURL.OriginalURL
	resp.Body.Code = string(shortURL.Code)

	return resp, nil
}

const errInvalidURLMessage = "a valid http or https url is required"

// decodeURL extracts and validates the url field. An empty body counts as a missing url.
func decodeURL(raw []byte) (string, error) {
	var body ShortenBody

	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return "", fmt.Errorf("%w: %w", shortener.ErrInvalidURL, err)
		}
	}

	rawURL, ok := body.URL.(string)
	if !ok {
		return "", shortener.ErrInvalidURL
	}

	return shortener.ValidateURL(rawURL)
}

func (h *URLHandler) shortenError(err error) error {
	if errors.Is(err, shortener.ErrAllocationExhausted) {
		h.metrics.Allocation(string(h.strategyName), metrics.ResultExhausted)
		h.logger.Warn("short code allocation exhausted", zap.Error(err))

		return huma.Error503ServiceUnavailable("could not allocate a short code, try again")
	}

	h.metrics.Allocation(string(h.strategyName), metrics.ResultError)
	h.logger.Error("failed to shorten url", zap.Error(err))

	return huma.Error500InternalServerError("failed to save url")
}

func (h *URLHandler) publishCreated(ctx context.Context, shortURL *shortener.ShortURL) {
	if h.publishURLCreated == nil {
		return
	}

	meta := analytics.RequestMetaFromContext(ctx)
	event := &analytics.URLCreatedEvent{
		Code:        string(shortURL.Code),
		OriginalURL: shortURL.OriginalURL,
		Strategy:    string(h.strategyName),
		CreatedAt:   shortURL.CreatedAt,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
	}

	if err := h.publishURLCreated(ctx, event); err != nil {
		h.logger.Error("failed to publish url created event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	shortURL, err := h.resolver.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		if errors.Is(err, shortener.ErrNotFound) {
			return nil, huma.Error404NotFound("short url not found")
		}

		h.logger.Error("failed to resolve short url",
			zap.String("code", req.Code),
			zap.Error(err),
		)

		return nil, huma.Error503ServiceUnavailable("service unavailable")
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: shortURL.OriginalURL,
	}, nil
}
