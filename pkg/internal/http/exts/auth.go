package exts

import (
	"strings"

	"git.solsynth.dev/hypernet/confession/pkg/internal/identity"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ContextMiddleware verifies the bearer token, if any, and stores the actor
// under the "user" local. EventSource clients pass the token as ?tk= instead.
func ContextMiddleware(verifier *identity.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if len(token) == 0 || verifier == nil {
			return c.Next()
		}

		actor, err := verifier.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals("user", actor)
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); len(header) > 0 {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("tk")
}

// CurrentActor returns the verified actor, or an empty one for guests.
func CurrentActor(c *fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals("user").(models.Actor)
	return actor, ok
}

func EnsureAuthenticated(c *fiber.Ctx) error {
	if _, ok := CurrentActor(c); !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "you must sign in first")
	}
	return nil
}

func EnsureAdmin(c *fiber.Ctx) error {
	if err := EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := CurrentActor(c)
	if !lo.Contains(viper.GetStringSlice("security.admins"), actor.ID) {
		return fiber.NewError(fiber.StatusForbidden, "admin permission required")
	}
	return nil
}
