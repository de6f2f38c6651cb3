package api

import (
	"context"

	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services/feeds"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func universalPostFilter(c *fiber.Ctx) (models.PostFilter, models.PostSortMode, error) {
	var filter models.PostFilter
	if author := c.Query("author"); len(author) > 0 {
		filter.AuthorID = &author
	}
	if len(c.Query("category")) > 0 {
		category, err := models.ParseCategory(c.Query("category"))
		if err != nil {
			return filter, "", err
		}
		filter.Category = &category
	}

	sort := models.PostSortMode(c.Query("sort", string(models.PostSortRecency)))
	if sort != models.PostSortRecency && sort != models.PostSortPopularity {
		return filter, "", fiber.NewError(fiber.StatusBadRequest, "sort must be recency or popularity")
	}

	actor, _ := exts.CurrentActor(c)
	return services.ViewerFilter(filter, actor.ID), sort, nil
}

// toItems redacts posts for the viewer and marks the ones they like.
func toItems(ctx context.Context, posts []models.Post, viewer models.Actor) ([]feeds.Item, error) {
	liked := map[string]bool{}
	if len(viewer.ID) > 0 && len(posts) > 0 {
		var err error
		if liked, err = services.LikedPostIDs(ctx, store.C, viewer.ID); err != nil {
			return nil, err
		}
	}
	return lo.Map(posts, func(item models.Post, _ int) feeds.Item {
		return feeds.Item{Post: item.Redacted(viewer.ID), Liked: liked[item.ID]}
	}), nil
}

func listPost(c *fiber.Ctx) error {
	filter, sort, err := universalPostFilter(c)
	if err != nil {
		return err
	}

	posts, err := services.ListPosts(c.UserContext(), store.C, filter, sort, c.QueryInt("take", 0))
	if err != nil {
		return err
	}

	actor, _ := exts.CurrentActor(c)
	items, err := toItems(c.UserContext(), posts, actor)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

// searchPost scans one freshly loaded page, the same way a live feed searches.
func searchPost(c *fiber.Ctx) error {
	probe := c.Query("probe")
	if len(probe) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "probe is required")
	}

	filter, sort, err := universalPostFilter(c)
	if err != nil {
		return err
	}

	posts, err := services.ListPosts(c.UserContext(), store.C, filter, sort, c.QueryInt("take", 0))
	if err != nil {
		return err
	}

	actor, _ := exts.CurrentActor(c)
	items, err := toItems(c.UserContext(), feeds.FilterPosts(posts, probe), actor)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"count": len(items),
		"data":  items,
	})
}

func streamPost(c *fiber.Ctx) error {
	filter, sort, err := universalPostFilter(c)
	if err != nil {
		return err
	}

	opts := feeds.Options{Filter: filter, Sort: sort, Take: c.QueryInt("take", 0)}
	if actor, ok := exts.CurrentActor(c); ok {
		opts.Viewer = &actor
	}

	return exts.Stream(c, "posts", func(ctx context.Context, push func([]feeds.Item)) (func(), error) {
		feed := feeds.New(store.C, opts)
		if err := feed.Start(ctx); err != nil {
			feed.Close()
			return nil, err
		}
		feed.Observe(push)
		return feed.Close, nil
	})
}

func getPost(c *fiber.Ctx) error {
	post, err := services.GetPost(c.UserContext(), store.C, c.Params("postId"))
	if err != nil {
		return err
	}

	actor, _ := exts.CurrentActor(c)
	items, err := toItems(c.UserContext(), []models.Post{post}, actor)
	if err != nil {
		return err
	}
	return c.JSON(items[0])
}

func createPost(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	var data services.PostInput
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	post, err := services.CreatePost(c.UserContext(), store.C, actor, data)
	if err != nil {
		return err
	}
	return c.JSON(post)
}

func deletePost(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}
	actor, _ := exts.CurrentActor(c)

	if err := services.DeletePost(c.UserContext(), store.C, c.Params("postId"), actor); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func sharePost(c *fiber.Ctx) error {
	if err := services.SharePost(c.UserContext(), store.C, c.Params("postId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
