package api

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
)

func createUser(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	var data services.UserInput
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	user, err := services.CreateUser(c.UserContext(), store.C, actor, data)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func getMe(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	user, err := services.GetUser(c.UserContext(), store.C, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func updateMe(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	var data services.UserPatch
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	user, err := services.UpdateUser(c.UserContext(), store.C, actor.ID, actor, data)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func getUser(c *fiber.Ctx) error {
	user, err := services.GetUser(c.UserContext(), store.C, c.Params("userId"))
	if err != nil {
		return err
	}

	if actor, _ := exts.CurrentActor(c); actor.ID != user.ID {
		user.Email = ""
	}
	return c.JSON(user)
}

func listMyLikes(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	posts, err := services.ListLikedPosts(c.UserContext(), store.C, actor.ID, c.QueryInt("take", 0))
	if err != nil {
		return err
	}
	items, err := toItems(c.UserContext(), posts, actor)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

func listMyReplies(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	items, err := services.ListUserComments(c.UserContext(), store.C, actor.ID, c.QueryInt("take", 0))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}
