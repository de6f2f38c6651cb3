package admin

import (
	"git.solsynth.dev/hypernet/confession/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func adminAuditCounters(c *fiber.Ctx) error {
	if err := exts.EnsureAdmin(c); err != nil {
		return err
	}

	repair := c.QueryBool("repair", false)
	warnings, err := services.AuditCounters(c.UserContext(), store.C, repair)
	if err != nil {
		return err
	}

	actor, _ := exts.CurrentActor(c)
	log.Info().Str("admin", actor.ID).Bool("repair", repair).Int("drifted", len(warnings)).Msg("Counter audit triggered.")

	return c.JSON(fiber.Map{
		"count":    len(warnings),
		"repaired": repair,
		"data":     warnings,
	})
}
