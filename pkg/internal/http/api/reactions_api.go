package api

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
)

func reactPost(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	liked, err := services.ToggleLike(c.UserContext(), store.C, c.Params("postId"), actor)
	if err != nil {
		return err
	}
	if liked {
		return c.SendStatus(fiber.StatusCreated)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func getPostReaction(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	liked, err := services.IsLiked(c.UserContext(), store.C, c.Params("postId"), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"liked": liked})
}
