package repository

import (
	"context"
	"time"

	"review-responder/internal/domain/entity"
)

type AIProvider interface {
	Generate(ctx context.Context, req entity.LLMRequest) (*entity.LLMResponse, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// RateLimiter is a per-key request counter over a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
	Limit() int
	Window() time.Duration
}

// TokenStore keeps revoked access tokens and the current refresh token per user.
type TokenStore interface {
	Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
	SaveRefreshToken(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *entity.User) error
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
}

type UsageStore interface {
	GetUsage(ctx context.Context, userID string) (*entity.UsageState, error)
	IncrementUsage(ctx context.Context, userID string, n int) error
	ResetMonthlyUsage(ctx context.Context) (int64, error)
}

type ResponseStore interface {
	SaveGeneration(ctx context.Context, rec *entity.GenerationRecord) (int64, error)
	ListGenerations(ctx context.Context, userID string, limit, offset int) ([]entity.GenerationRecord, error)
}

type AuditLog interface {
	RecordAudit(ctx context.Context, evt entity.AuditEvent) error
}

// ResponseIndex stores generations by review embedding for similarity lookup.
type ResponseIndex interface {
	Save(ctx context.Context, rec *entity.GenerationRecord, vector []float32) error
	Search(ctx context.Context, userID string, vector []float32, threshold float32, limit int) ([]entity.SimilarResponse, error)
}
