package api

import (
	"net/url"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/gofiber/fiber/v2"
)

func listCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": models.Categories,
		"moods":      models.Moods,
	})
}

// categoryParam accepts an alias such as "campus-life" or an escaped display name.
func categoryParam(c *fiber.Ctx) (models.Category, error) {
	raw, err := url.PathUnescape(c.Params("category"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return models.ParseCategory(raw)
}
