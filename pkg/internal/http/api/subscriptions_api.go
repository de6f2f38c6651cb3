package api

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
)

func listSubscriptions(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	items, err := services.ListSubscriptions(c.UserContext(), store.C, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func getSubscription(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	category, err := categoryParam(c)
	if err != nil {
		return err
	}

	subscription, err := services.GetSubscriptionOnCategory(c.UserContext(), store.C, actor, category)
	if err != nil {
		return err
	} else if subscription == nil {
		return fiber.NewError(fiber.StatusNotFound, "subscription does not exist")
	}
	return c.JSON(subscription)
}

func subscribeCategory(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	category, err := categoryParam(c)
	if err != nil {
		return err
	}

	subscription, err := services.SubscribeToCategory(c.UserContext(), store.C, actor, category)
	if err != nil {
		return err
	}
	return c.JSON(subscription)
}

func unsubscribeCategory(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	category, err := categoryParam(c)
	if err != nil {
		return err
	}

	if err := services.UnsubscribeFromCategory(c.UserContext(), store.C, actor, category); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
