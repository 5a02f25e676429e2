package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"review-responder/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orchestratorFixture struct {
	provider  *scriptedProvider
	usage     *fakeUsageStore
	responses *fakeResponseStore
	audit     *fakeAuditLog
	limiter   *fakeLimiter
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T, opts ...OrchestratorOption) *orchestratorFixture {
	t.Helper()
	trialEnd := time.Now().Add(7 * 24 * time.Hour)
	f := &orchestratorFixture{
		provider:  &scriptedProvider{sentiment: positiveSentiment, generation: threeResponses},
		usage:     &fakeUsageStore{state: entity.UsageState{MonthlyUsage: 3, UsageLimit: 50, TrialEndDate: &trialEnd}},
		responses: &fakeResponseStore{},
		audit:     &fakeAuditLog{},
		limiter:   &fakeLimiter{allow: true},
	}
	gen := NewResponseGenerator(f.provider, NewSentimentClassifier(f.provider, zap.NewNop()), zap.NewNop())
	f.orch = NewOrchestrator(gen, f.usage, f.responses, f.audit, f.limiter, zap.NewNop(), opts...)
	return f
}

func (f *orchestratorFixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Wait(ctx))
}

func TestOrchestratorGenerate(t *testing.T) {
	f := newOrchestratorFixture(t)

	res, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)
	f.settle(t)

	assert.Equal(t, 1, f.usage.Incremented())
	saved := f.responses.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "user-1", saved[0].UserID)
	assert.False(t, saved[0].AutoGenerated)
	assert.Equal(t, entity.RecordStatusGenerated, saved[0].Status)

	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditActionGenerate, events[0].Action)
	assert.Equal(t, int64(1), events[0].Metadata["generation_id"])
}

func TestOrchestratorQuotaBoundary(t *testing.T) {
	t.Run("one below the limit passes", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.usage.state.MonthlyUsage = 49
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.NoError(t, err)
		f.settle(t)
	})

	t.Run("at the limit is rejected", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.usage.state.MonthlyUsage = 50
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.ErrorIs(t, err, entity.ErrQuotaExceeded)

		var appErr *entity.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 50, appErr.Details["monthly_usage"])
		assert.Empty(t, f.provider.requests, "no provider call after a gate rejection")
		assert.Equal(t, 0, f.limiter.calls)
	})
}

func TestOrchestratorTrialGate(t *testing.T) {
	expired := time.Now().Add(-time.Hour)

	t.Run("expired trial without subscription", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.usage.state.TrialEndDate = &expired
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.ErrorIs(t, err, entity.ErrPaymentRequired)
		assert.Empty(t, f.responses.Saved())
	})

	t.Run("expired trial with subscription", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.usage.state.TrialEndDate = &expired
		f.usage.state.HasActiveSubscription = true
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.NoError(t, err)
		f.settle(t)
	})

	t.Run("no trial recorded", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.usage.state.TrialEndDate = nil
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.ErrorIs(t, err, entity.ErrPaymentRequired)
	})
}

func TestOrchestratorRateLimit(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.limiter.allow = false
	f.limiter.retryAfter = 90 * time.Second

	_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	require.ErrorIs(t, err, entity.ErrRateLimitExceeded)

	var appErr *entity.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 90*time.Second, appErr.RetryAfter)
	assert.Equal(t, 90, appErr.Details["retry_after_seconds"])
	assert.Empty(t, f.provider.requests)
}

func TestOrchestratorRateLimiterFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.limiter.err = errors.New("redis: connection refused")

	_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	assert.ErrorIs(t, err, entity.ErrInternalServer)
}

func TestOrchestratorValidationRunsFirst(t *testing.T) {
	f := newOrchestratorFixture(t)
	in := tonysDinerInput()
	in.Text = "short"

	_, err := f.orch.Generate(context.Background(), "user-1", in)
	require.ErrorIs(t, err, entity.ErrInvalidRequest)
	assert.Equal(t, 0, f.limiter.calls)
}

func TestOrchestratorGenerationFailureHasNoSideEffects(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.provider.generation = "not json"

	_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	require.ErrorIs(t, err, entity.ErrGeneration)
	f.settle(t)

	assert.Equal(t, 0, f.usage.Incremented())
	assert.Empty(t, f.audit.Events())
	assert.Empty(t, f.responses.Saved())
}

func TestOrchestratorSideEffectFailuresDoNotFailRequest(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.usage.incrErr = errors.New("db down")
	f.audit.err = errors.New("db down")

	res, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 3)
	f.settle(t)
}

func TestOrchestratorPersistFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.responses.saveErr = errors.New("disk full")

	_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
	require.ErrorIs(t, err, entity.ErrInternalServer)
	f.settle(t)
	assert.Equal(t, 0, f.usage.Incremented())
}

func TestOrchestratorGenerateSingle(t *testing.T) {
	f := newOrchestratorFixture(t)

	single, err := f.orch.GenerateSingle(context.Background(), "user-1", tonysDinerInput())
	require.NoError(t, err)
	assert.Contains(t, single.Text, "Tony's Diner")
	f.settle(t)

	saved := f.responses.Saved()
	require.Len(t, saved, 1)
	assert.True(t, saved[0].AutoGenerated)
	assert.Equal(t, entity.AuditActionGenerateSingle, f.audit.Events()[0].Action)
}

func TestOrchestratorRunBatch(t *testing.T) {
	f := newOrchestratorFixture(t, WithBatchPolicy(time.Millisecond, 5))
	f.provider.generationHook = func(req entity.LLMRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "FAIL") {
			return "", errors.New("400 bad request")
		}
		return threeResponses, nil
	}
	items := batchOf(3)
	items[1].Text = "Please FAIL this review now."

	res, err := f.orch.RunBatch(context.Background(), "user-1", items, entity.BusinessRestaurant, entity.ToneFriendly, "Tony's Diner")
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "r-2", res.Failed[0].ReviewID)
	f.settle(t)

	assert.Equal(t, 2, f.usage.Incremented())
	saved := f.responses.Saved()
	require.Len(t, saved, 2)
	for _, rec := range saved {
		assert.True(t, rec.AutoGenerated)
	}
	events := f.audit.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.AuditActionBatch, events[0].Action)
	assert.Equal(t, 1, f.limiter.calls, "gates run once per batch")
}

func TestOrchestratorRunBatchGates(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		_, err := f.orch.RunBatch(context.Background(), "user-1", nil, "", "", "Acme")
		assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	})

	t.Run("too many items", func(t *testing.T) {
		f := newOrchestratorFixture(t, WithBatchPolicy(0, 2))
		_, err := f.orch.RunBatch(context.Background(), "user-1", batchOf(3), "", "", "Acme")
		assert.ErrorIs(t, err, entity.ErrInvalidRequest)
	})

	t.Run("not enough quota for every item", func(t *testing.T) {
		f := newOrchestratorFixture(t, WithBatchPolicy(0, 10))
		f.usage.state.MonthlyUsage = 48
		_, err := f.orch.RunBatch(context.Background(), "user-1", batchOf(3), "", "", "Acme")
		require.ErrorIs(t, err, entity.ErrQuotaExceeded)

		var appErr *entity.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, 3, appErr.Details["requested"])
		assert.Empty(t, f.provider.requests)
	})
}

func TestOrchestratorHistory(t *testing.T) {
	f := newOrchestratorFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.NoError(t, err)
	}
	f.settle(t)

	recs, err := f.orch.History(context.Background(), "user-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = f.orch.History(context.Background(), "user-2", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOrchestratorSimilar(t *testing.T) {
	t.Run("disabled without an index", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		_, err := f.orch.Similar(context.Background(), "user-1", "Great pancakes and coffee", 5)
		assert.ErrorIs(t, err, entity.ErrFeatureDisabled)
	})

	t.Run("indexes generations and searches", func(t *testing.T) {
		idx := &fakeIndex{results: []entity.SimilarResponse{{GenerationID: 1, Score: 0.93}}}
		f := newOrchestratorFixture(t, WithResponseIndex(idx, &fakeEmbedder{}, 0.8))

		_, err := f.orch.Generate(context.Background(), "user-1", tonysDinerInput())
		require.NoError(t, err)
		f.settle(t)
		assert.Equal(t, []int64{1}, idx.saved)

		found, err := f.orch.Similar(context.Background(), "user-1", "Great pancakes and coffee", 5)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.InDelta(t, 0.93, found[0].Score, 1e-6)
	})

	t.Run("embedding failure", func(t *testing.T) {
		f := newOrchestratorFixture(t, WithResponseIndex(&fakeIndex{}, &fakeEmbedder{err: errors.New("quota")}, 0.8))
		_, err := f.orch.Similar(context.Background(), "user-1", "Great pancakes and coffee", 5)
		assert.ErrorIs(t, err, entity.ErrInternalServer)
	})
}

func TestOrchestratorUsage(t *testing.T) {
	f := newOrchestratorFixture(t)
	state, err := f.orch.Usage(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 47, state.Remaining())

	f.usage.getErr = errors.New("db down")
	_, err = f.orch.Usage(context.Background(), "user-1")
	assert.ErrorIs(t, err, entity.ErrInternalServer)
}

func TestCheckUsage(t *testing.T) {
	assert.NoError(t, CheckUsage(&entity.UsageState{MonthlyUsage: 0, UsageLimit: 1}))
	assert.ErrorIs(t, CheckUsage(&entity.UsageState{MonthlyUsage: 1, UsageLimit: 1}), entity.ErrQuotaExceeded)
	assert.ErrorIs(t, CheckUsage(&entity.UsageState{MonthlyUsage: 0, UsageLimit: 0}), entity.ErrQuotaExceeded)
}
