package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard domain errors
var (
	ErrUnauthorized      = errors.New("authentication required")
	ErrPaymentRequired   = errors.New("trial expired and no active subscription")
	ErrQuotaExceeded     = errors.New("monthly usage limit reached")
	ErrRateLimitExceeded = errors.New("rate limit exceeded: too many requests")
	ErrGeneration        = errors.New("response generation failed")
	ErrInternalServer    = errors.New("an internal error occurred")
	ErrInvalidRequest    = errors.New("invalid request parameters")
	ErrResourceNotFound  = errors.New("the requested resource was not found")
	ErrConflict          = errors.New("the resource already exists")
	ErrFeatureDisabled   = errors.New("the feature is not enabled")
)

type AuthReason string

const (
	AuthMissing AuthReason = "missing"
	AuthInvalid AuthReason = "invalid"
	AuthExpired AuthReason = "expired"
)

// AppError is a classified failure. Kind is one of the sentinel errors above
// and makes errors.Is work; Err keeps the underlying cause for diagnostics.
type AppError struct {
	Kind       error
	Code       string
	Message    string
	Details    map[string]any
	RetryAfter time.Duration
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool { return target == e.Kind }

func NewAuthError(reason AuthReason, cause error) *AppError {
	msgs := map[AuthReason]string{
		AuthMissing: "missing bearer token",
		AuthInvalid: "invalid token",
		AuthExpired: "token has expired",
	}
	return &AppError{
		Kind:    ErrUnauthorized,
		Code:    "AUTH_" + strings.ToUpper(string(reason)),
		Message: msgs[reason],
		Details: map[string]any{"reason": string(reason)},
		Err:     cause,
	}
}

func NewInvalidCredentialsError() *AppError {
	return &AppError{Kind: ErrUnauthorized, Code: "INVALID_CREDENTIALS", Message: "invalid email or password"}
}

func NewPaymentRequiredError(trialEnd *time.Time) *AppError {
	details := map[string]any{"remediation": "subscribe to a paid plan to continue generating responses"}
	if trialEnd != nil {
		details["trial_end_date"] = trialEnd.UTC().Format(time.RFC3339)
	}
	return &AppError{
		Kind:    ErrPaymentRequired,
		Code:    "TRIAL_EXPIRED",
		Message: "your free trial has ended; an active subscription is required",
		Details: details,
	}
}

func NewQuotaExceededError(usage, limit int) *AppError {
	return &AppError{
		Kind:    ErrQuotaExceeded,
		Code:    "USAGE_LIMIT_EXCEEDED",
		Message: "monthly usage limit reached",
		Details: map[string]any{"monthly_usage": usage, "usage_limit": limit},
	}
}

func NewRateLimitError(limit int, window, retryAfter time.Duration) *AppError {
	return &AppError{
		Kind:    ErrRateLimitExceeded,
		Code:    "RATE_LIMIT_EXCEEDED",
		Message: "too many requests, slow down",
		Details: map[string]any{
			"limit":               limit,
			"window_seconds":      int(window.Seconds()),
			"retry_after_seconds": retrySeconds(retryAfter),
		},
		RetryAfter: retryAfter,
	}
}

// NewGenerationError hides provider detail from callers; cause is kept for logs.
func NewGenerationError(cause error) *AppError {
	return &AppError{
		Kind:    ErrGeneration,
		Code:    "GENERATION_FAILED",
		Message: "failed to generate responses, please try again",
		Err:     cause,
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Kind: ErrInvalidRequest, Code: "VALIDATION_ERROR", Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: ErrConflict, Code: "CONFLICT", Message: msg}
}

func NewInternalError(cause error) *AppError {
	return &AppError{Kind: ErrInternalServer, Code: "INTERNAL_ERROR", Message: "an internal error occurred", Err: cause}
}

func retrySeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

func NewFeatureDisabledError(feature string) *AppError {
	return &AppError{Kind: ErrFeatureDisabled, Code: "FEATURE_DISABLED", Message: feature + " is not enabled"}
}
