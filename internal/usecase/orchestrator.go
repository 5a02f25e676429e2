package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"review-responder/internal/domain/entity"
	"review-responder/internal/domain/repository"
	"review-responder/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Generator interface {
	Generate(ctx context.Context, in entity.ReviewInput) (*entity.GenerationResult, error)
}

const backgroundTimeout = 10 * time.Second

// Orchestrator runs the metered request lifecycle: trial/subscription, quota
// and rate-limit gates, then the generation, then best-effort usage and audit
// side effects. Authentication happens before it, in the delivery layer.
type Orchestrator struct {
	generator Generator
	usage     repository.UsageStore
	responses repository.ResponseStore
	audit     repository.AuditLog
	limiter   repository.RateLimiter

	index            repository.ResponseIndex
	embedder         repository.Embedder
	similarThreshold float32

	batchDelay    time.Duration
	batchMaxItems int

	logger *zap.Logger
	now    func() time.Time
	bg     sync.WaitGroup
}

type OrchestratorOption func(*Orchestrator)

// WithResponseIndex enables background indexing and similar-response search.
func WithResponseIndex(index repository.ResponseIndex, embedder repository.Embedder, threshold float32) OrchestratorOption {
	return func(o *Orchestrator) {
		o.index = index
		o.embedder = embedder
		o.similarThreshold = threshold
	}
}

func WithBatchPolicy(delay time.Duration, maxItems int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.batchDelay = delay
		o.batchMaxItems = maxItems
	}
}

func NewOrchestrator(gen Generator, usage repository.UsageStore, responses repository.ResponseStore, audit repository.AuditLog,
	limiter repository.RateLimiter, logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		generator:     gen,
		usage:         usage,
		responses:     responses,
		audit:         audit,
		limiter:       limiter,
		batchDelay:    time.Second,
		batchMaxItems: 50,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckAccess runs the trial/subscription gate and the quota gate against the
// caller's current usage snapshot.
func (o *Orchestrator) CheckAccess(ctx context.Context, userID string) (*entity.UsageState, error) {
	state, err := o.usage.GetUsage(ctx, userID)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("load usage: %w", err))
	}

	if !state.InTrial(o.now()) && !state.HasActiveSubscription {
		metrics.RecordGateRejection("payment")
		return nil, entity.NewPaymentRequiredError(state.TrialEndDate)
	}

	if err := CheckUsage(state); err != nil {
		metrics.RecordGateRejection("quota")
		return nil, err
	}
	return state, nil
}

// CheckUsage rejects once the monthly usage has reached the limit. It reads a
// snapshot, so concurrent requests at the boundary can both pass.
func CheckUsage(state *entity.UsageState) error {
	if state.MonthlyUsage >= state.UsageLimit {
		return entity.NewQuotaExceededError(state.MonthlyUsage, state.UsageLimit)
	}
	return nil
}

func (o *Orchestrator) checkRateLimit(ctx context.Context, userID string) error {
	allowed, retryAfter, err := o.limiter.Allow(ctx, userID)
	if err != nil {
		return entity.NewInternalError(fmt.Errorf("rate limiter check failed: %w", err))
	}
	if !allowed {
		metrics.RecordGateRejection("rate_limit")
		return entity.NewRateLimitError(o.limiter.Limit(), o.limiter.Window(), retryAfter)
	}
	return nil
}

func (o *Orchestrator) admit(ctx context.Context, userID string) (*entity.UsageState, error) {
	state, err := o.CheckAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := o.checkRateLimit(ctx, userID); err != nil {
		return nil, err
	}
	return state, nil
}

// Generate produces three candidates for one review.
func (o *Orchestrator) Generate(ctx context.Context, userID string, in entity.ReviewInput) (*entity.GenerationResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := o.admit(ctx, userID); err != nil {
		return nil, err
	}

	res, rec, err := o.execute(ctx, userID, in, false)
	if err != nil {
		return nil, err
	}
	o.complete(userID, 1, entity.AuditActionGenerate, map[string]any{
		"generation_id": rec.ID,
		"business_type": string(res.BusinessType),
		"tone":          string(res.Tone),
		"sentiment":     string(res.Sentiment.Sentiment),
	})
	return res, nil
}

// GenerateSingle is Generate for unattended callers: only the first candidate
// is returned and the record is flagged as auto-generated.
func (o *Orchestrator) GenerateSingle(ctx context.Context, userID string, in entity.ReviewInput) (*entity.SingleResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, err := o.admit(ctx, userID); err != nil {
		return nil, err
	}

	res, rec, err := o.execute(ctx, userID, in, true)
	if err != nil {
		return nil, err
	}
	o.complete(userID, 1, entity.AuditActionGenerateSingle, map[string]any{
		"generation_id": rec.ID,
		"business_type": string(res.BusinessType),
	})
	return SingleFromResult(res), nil
}

// RunBatch passes the gates once for the whole batch, which needs enough
// remaining quota for every item, then runs the items sequentially.
func (o *Orchestrator) RunBatch(ctx context.Context, userID string, items []entity.BatchItem, bt entity.BusinessType, tone entity.Tone, businessName string) (*entity.BatchResult, error) {
	if len(items) == 0 {
		return nil, entity.NewValidationError("reviews must not be empty")
	}
	if len(items) > o.batchMaxItems {
		return nil, entity.NewValidationError(fmt.Sprintf("a batch holds at most %d reviews", o.batchMaxItems))
	}

	state, err := o.admit(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state.Remaining() < len(items) {
		metrics.RecordGateRejection("quota")
		qe := entity.NewQuotaExceededError(state.MonthlyUsage, state.UsageLimit)
		qe.Details["requested"] = len(items)
		return nil, qe
	}

	runner := NewBatchRunner(&persistingGenerator{o: o, userID: userID}, o.batchDelay, o.logger)
	result := runner.Run(ctx, items, bt, tone, businessName)

	if n := len(result.Succeeded); n > 0 {
		o.complete(userID, n, entity.AuditActionBatch, map[string]any{
			"total":     len(items),
			"succeeded": n,
			"failed":    len(result.Failed),
		})
	}
	return &result, nil
}

func (o *Orchestrator) execute(ctx context.Context, userID string, in entity.ReviewInput, auto bool) (*entity.GenerationResult, *entity.GenerationRecord, error) {
	res, err := o.generator.Generate(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	rec := &entity.GenerationRecord{
		UserID:        userID,
		OriginalText:  in.Text,
		BusinessName:  in.BusinessName,
		BusinessType:  res.BusinessType,
		Tone:          res.Tone,
		Result:        res,
		Status:        entity.RecordStatusGenerated,
		AutoGenerated: auto,
		CreatedAt:     res.GeneratedAt,
	}
	id, err := o.responses.SaveGeneration(ctx, rec)
	if err != nil {
		return nil, nil, entity.NewInternalError(fmt.Errorf("save generation: %w", err))
	}
	rec.ID = id

	if o.index != nil && o.embedder != nil {
		o.background("index generation", func(ctx context.Context) error {
			vec, err := o.embedder.CreateEmbedding(ctx, rec.OriginalText)
			if err != nil {
				return fmt.Errorf("embed review: %w", err)
			}
			return o.index.Save(ctx, rec, vec)
		})
	}
	return res, rec, nil
}

// complete fires the post-response side effects. Their failures only reach
// the logs; the caller already has the result.
func (o *Orchestrator) complete(userID string, units int, action string, meta map[string]any) {
	o.background("increment usage", func(ctx context.Context) error {
		return o.usage.IncrementUsage(ctx, userID, units)
	})
	o.background("record audit", func(ctx context.Context) error {
		return o.audit.RecordAudit(ctx, entity.AuditEvent{
			ID:        uuid.NewString(),
			UserID:    userID,
			Action:    action,
			Metadata:  meta,
			CreatedAt: o.now().UTC(),
		})
	})
}

func (o *Orchestrator) background(task string, fn func(ctx context.Context) error) {
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		// Detached from the request context, which may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.logger.Error("background task failed", zap.String("task", task), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight background tasks finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Usage(ctx context.Context, userID string) (*entity.UsageState, error) {
	state, err := o.usage.GetUsage(ctx, userID)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("load usage: %w", err))
	}
	return state, nil
}

func (o *Orchestrator) History(ctx context.Context, userID string, limit, offset int) ([]entity.GenerationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := o.responses.ListGenerations(ctx, userID, limit, offset)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("list generations: %w", err))
	}
	return recs, nil
}

// Similar finds the caller's past generations for reviews resembling text.
func (o *Orchestrator) Similar(ctx context.Context, userID, text string, limit int) ([]entity.SimilarResponse, error) {
	if o.index == nil || o.embedder == nil {
		return nil, entity.NewFeatureDisabledError("similar response search")
	}
	if len(text) < entity.MinReviewLength {
		return nil, entity.NewValidationError("text must be at least 10 characters")
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}
	vec, err := o.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("embed query: %w", err))
	}
	found, err := o.index.Search(ctx, userID, vec, o.similarThreshold, limit)
	if err != nil {
		return nil, entity.NewInternalError(fmt.Errorf("search index: %w", err))
	}
	return found, nil
}

// persistingGenerator adapts the orchestrator to the batch runner: each item
// is generated, persisted as auto-generated, and reduced to one candidate.
type persistingGenerator struct {
	o      *Orchestrator
	userID string
}

func (p *persistingGenerator) GenerateSingle(ctx context.Context, in entity.ReviewInput) (*entity.SingleResponse, error) {
	res, _, err := p.o.execute(ctx, p.userID, in, true)
	if err != nil {
		return nil, err
	}
	return SingleFromResult(res), nil
}
