package api

import (
	"context"

	"review-responder/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
)

// ReviewService is the metered review workflow behind the /v1/responses routes.
type ReviewService interface {
	Generate(ctx context.Context, userID string, in entity.ReviewInput) (*entity.GenerationResult, error)
	GenerateSingle(ctx context.Context, userID string, in entity.ReviewInput) (*entity.SingleResponse, error)
	RunBatch(ctx context.Context, userID string, items []entity.BatchItem, bt entity.BusinessType, tone entity.Tone, businessName string) (*entity.BatchResult, error)
	History(ctx context.Context, userID string, limit, offset int) ([]entity.GenerationRecord, error)
	Similar(ctx context.Context, userID, text string, limit int) ([]entity.SimilarResponse, error)
	Usage(ctx context.Context, userID string) (*entity.UsageState, error)
}

type ReviewHandler struct {
	reviews ReviewService
}

func NewReviewHandler(reviews ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type batchRequest struct {
	Reviews      []entity.BatchItem  `json:"reviews"`
	BusinessType entity.BusinessType `json:"business_type"`
	Tone         entity.Tone         `json:"tone"`
	BusinessName string              `json:"business_name"`
}

func (h *ReviewHandler) Generate(c *fiber.Ctx) error {
	var in entity.ReviewInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, entity.NewValidationError("invalid request body"))
	}

	res, err := h.reviews.Generate(c.UserContext(), identity(c).UserID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReviewHandler) GenerateSingle(c *fiber.Ctx) error {
	var in entity.ReviewInput
	if err := c.BodyParser(&in); err != nil {
		return writeError(c, entity.NewValidationError("invalid request body"))
	}

	res, err := h.reviews.GenerateSingle(c.UserContext(), identity(c).UserID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReviewHandler) Batch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, entity.NewValidationError("invalid request body"))
	}

	res, err := h.reviews.RunBatch(c.UserContext(), identity(c).UserID, req.Reviews, req.BusinessType, req.Tone, req.BusinessName)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

func (h *ReviewHandler) History(c *fiber.Ctx) error {
	limit, offset := c.QueryInt("limit", 20), c.QueryInt("offset", 0)
	recs, err := h.reviews.History(c.UserContext(), identity(c).UserID, limit, offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"items": recs, "limit": limit, "offset": offset})
}

func (h *ReviewHandler) Similar(c *fiber.Ctx) error {
	found, err := h.reviews.Similar(c.UserContext(), identity(c).UserID, c.Query("text"), c.QueryInt("limit", 5))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"items": found})
}

func (h *ReviewHandler) Usage(c *fiber.Ctx) error {
	state, err := h.reviews.Usage(c.UserContext(), identity(c).UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"monthly_usage":           state.MonthlyUsage,
		"usage_limit":             state.UsageLimit,
		"remaining":               state.Remaining(),
		"trial_end_date":          state.TrialEndDate,
		"has_active_subscription": state.HasActiveSubscription,
	})
}
