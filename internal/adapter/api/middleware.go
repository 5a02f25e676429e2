package api

import (
	"context"
	"strings"

	"review-responder/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*entity.Identity, error)
}

// RequireAuth resolves the bearer credential and stores the caller identity
// in the request locals.
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := v.Verify(c.UserContext(), bearerToken(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func identity(c *fiber.Ctx) *entity.Identity {
	id, _ := c.Locals(identityKey).(*entity.Identity)
	return id
}
