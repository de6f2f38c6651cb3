package exts

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

func BindAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	} else if err := services.ValidateStruct(out); err != nil {
		return err
	}
	return nil
}
