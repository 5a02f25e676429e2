package api

import (
	"errors"
	"math"
	"strconv"

	"review-responder/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
)

type errorPayload struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

// statusFor maps an error kind to its HTTP status. Unclassified errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, entity.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, entity.ErrPaymentRequired):
		return fiber.StatusPaymentRequired
	case errors.Is(err, entity.ErrQuotaExceeded):
		return fiber.StatusForbidden
	case errors.Is(err, entity.ErrResourceNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, entity.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, entity.ErrRateLimitExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, entity.ErrFeatureDisabled):
		return fiber.StatusNotImplemented
	case errors.Is(err, entity.ErrGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as the public error body. Causes never leave the
// process; only the classified code, message and details do.
func writeError(c *fiber.Ctx, err error) error {
	var appErr *entity.AppError
	if !errors.As(err, &appErr) {
		appErr = entity.NewInternalError(err)
	}
	status := statusFor(appErr)
	if appErr.RetryAfter > 0 {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	return c.Status(status).JSON(errorBody{Error: errorPayload{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

// ErrorHandler renders errors escaping handlers, including Fiber's own
// routing errors, in the same body shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: errorPayload{
			Code:    "HTTP_" + strconv.Itoa(fe.Code),
			Message: fe.Message,
		}})
	}
	return writeError(c, err)
}
