package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"review-responder/internal/domain/entity"
	"review-responder/internal/metrics"

	"go.uber.org/zap"
)

type SingleGenerator interface {
	GenerateSingle(ctx context.Context, in entity.ReviewInput) (*entity.SingleResponse, error)
}

// BatchRunner drives reviews through a SingleGenerator one at a time, pausing
// a fixed delay after every item. A failed item never stops the batch.
type BatchRunner struct {
	gen    SingleGenerator
	delay  time.Duration
	logger *zap.Logger
}

func NewBatchRunner(gen SingleGenerator, delay time.Duration, logger *zap.Logger) *BatchRunner {
	return &BatchRunner{gen: gen, delay: delay, logger: logger}
}

// Run processes items in order. Cancelling ctx marks the remaining items as
// failed; it is the only way the loop ends before the last item.
func (b *BatchRunner) Run(ctx context.Context, items []entity.BatchItem, bt entity.BusinessType, tone entity.Tone, businessName string) entity.BatchResult {
	result := entity.BatchResult{
		Succeeded: []entity.BatchSuccess{},
		Failed:    []entity.BatchFailure{},
	}

	for i, item := range items {
		id := item.ReviewID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}

		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, entity.BatchFailure{ReviewID: id, Error: "batch cancelled"})
			continue
		}

		in := entity.ReviewInput{Text: item.Text, BusinessType: bt, Tone: tone, BusinessName: businessName}
		single, err := b.runItem(ctx, in)
		if err != nil {
			b.logger.Warn("batch item failed", zap.String("review_id", id), zap.Error(err))
			metrics.RecordBatchItem(false)
			result.Failed = append(result.Failed, entity.BatchFailure{ReviewID: id, Error: publicMessage(err)})
		} else {
			metrics.RecordBatchItem(true)
			result.Succeeded = append(result.Succeeded, entity.BatchSuccess{ReviewID: id, Result: single})
		}

		b.pause(ctx)
	}

	b.logger.Info("batch completed",
		zap.Int("total", len(items)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return result
}

func (b *BatchRunner) runItem(ctx context.Context, in entity.ReviewInput) (*entity.SingleResponse, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return b.gen.GenerateSingle(ctx, in)
}

func (b *BatchRunner) pause(ctx context.Context) {
	if b.delay <= 0 {
		return
	}
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// publicMessage returns the caller-safe message of err.
func publicMessage(err error) string {
	var appErr *entity.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return entity.ErrInternalServer.Error()
}
