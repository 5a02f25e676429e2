package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"
	"review-responder/internal/metrics"

	"go.uber.org/zap"
)

type ResilientProvider struct {
	primary    repository.AIProvider
	fallback   repository.AIProvider // optional second provider, tried once
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration // global cap per generation
	logger     *zap.Logger
}

type ProviderOption func(*ResilientProvider)

func WithRetryPolicy(maxRetries int, baseDelay time.Duration) ProviderOption {
	return func(r *ResilientProvider) {
		r.maxRetries = maxRetries
		r.baseDelay = baseDelay
	}
}

func WithTimeout(d time.Duration) ProviderOption {
	return func(r *ResilientProvider) { r.timeout = d }
}

func NewResilientProvider(primary, fallback repository.AIProvider, logger *zap.Logger, opts ...ProviderOption) *ResilientProvider {
	r := &ResilientProvider{
		primary:    primary,
		fallback:   fallback,
		maxRetries: 2, // 3 attempts on the primary
		baseDelay:  500 * time.Millisecond,
		timeout:    25 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResilientProvider) Generate(ctx context.Context, req entity.LLMRequest) (*entity.LLMResponse, error) {
	resCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.executeWithRetry(resCtx, r.primary, req)
	if err == nil {
		return resp, nil
	}
	if r.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("primary provider exhausted, switching to fallback", zap.Error(err))

	resp, err = r.fallback.Generate(resCtx, req)
	if err != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", err)
	}
	metrics.RecordProviderFallback()

	if resp.Metadata == nil {
		resp.Metadata = make(map[string]any)
	}
	resp.Metadata["fallback_used"] = true

	return resp, nil
}

func (r *ResilientProvider) executeWithRetry(ctx context.Context, p repository.AIProvider, req entity.LLMRequest) (*entity.LLMResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.isRetryable(err) || attempt == r.maxRetries {
			break
		}

		wait := r.calculateBackoff(attempt)
		r.logger.Debug("retrying provider call",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *ResilientProvider) isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	// Rate limits (429) and server errors (5xx)
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "deadline")
}

func (r *ResilientProvider) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.baseDelay) * float64(int(1)<<attempt)
	jitter := (rand.Float64() * 0.2) * backoff // 20% jitter
	return time.Duration(backoff + jitter)
}
