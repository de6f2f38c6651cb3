package api

import (
	"context"

	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func redactComments(comments []models.Comment, viewerID string) []models.Comment {
	return lo.Map(comments, func(item models.Comment, _ int) models.Comment {
		return item.Redacted(viewerID)
	})
}

func listPostReplies(c *fiber.Ctx) error {
	post, err := services.GetPost(c.UserContext(), store.C, c.Params("postId"))
	if err != nil {
		return err
	}

	items, err := services.ListComments(c.UserContext(), store.C, post.ID, c.QueryInt("take", 0))
	if err != nil {
		return err
	}

	actor, _ := exts.CurrentActor(c)
	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  redactComments(items, actor.ID),
	})
}

func streamPostReplies(c *fiber.Ctx) error {
	post, err := services.GetPost(c.UserContext(), store.C, c.Params("postId"))
	if err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	return exts.Stream(c, "replies", func(ctx context.Context, push func([]models.Comment)) (func(), error) {
		unsubscribe, err := services.SubscribeComments(ctx, store.C, post.ID, func(comments []models.Comment, err error) {
			if err == nil {
				push(redactComments(comments, actor.ID))
			}
		})
		if err != nil {
			return nil, err
		}
		return unsubscribe, nil
	})
}

func createPostReply(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	var data services.CommentInput
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	comment, err := services.AddComment(c.UserContext(), store.C, c.Params("postId"), actor, data)
	if err != nil {
		return err
	}
	return c.JSON(comment)
}
