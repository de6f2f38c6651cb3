package api

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
)

func listNotifications(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	items, err := services.ListNotifications(c.UserContext(), store.C, actor.ID, c.QueryInt("take", 0))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

func countUnreadNotifications(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	count, err := services.CountUnread(c.UserContext(), store.C, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

func markAllNotificationsRead(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	count, err := services.MarkAllRead(c.UserContext(), store.C, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

func markNotificationRead(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	if err := services.MarkRead(c.UserContext(), store.C, c.Params("notificationId"), actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
