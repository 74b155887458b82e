package handlers

import (
	"errors"

	"nexus-card-service/middleware"
	"nexus-card-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMmrRoutes(app *fiber.App, mmrService *services.MmrService, recorder *services.MatchRecorder) {
	userCtx := middleware.UserContextMiddleware()

	app.Post("/mmr/match/resolve", userCtx, func(c *fiber.Ctx) error {
		type Req struct {
			P1       string `json:"p1"`
			P2       string `json:"p2"`
			Mode     string `json:"mode"`
			Winner   int    `json:"winner"`
			P1Points int    `json:"p1_points"`
			P2Points int    `json:"p2_points"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		matchID, err := recorder.Resolve(c.Context(), req.P1, req.P2, req.Mode, req.Winner, req.P1Points, req.P2Points)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid match result",
					"cause": err.Error(),
				})
			}
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "player not found",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve match",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"ok": true, "match_id": matchID})
	})

	app.Post("/mmr/:userId/ensure", userCtx, func(c *fiber.Ctx) error {
		err := mmrService.EnsureRecord(c.Context(), c.Params("userId"), c.Query("mode", services.DefaultMode))
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid user id",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to ensure rating record",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/mmr/:userId", func(c *fiber.Ctx) error {
		rating, err := mmrService.GetRating(c.Context(), c.Params("userId"), c.Query("mode", services.DefaultMode))
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid user id",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load rating",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"rating": rating})
	})
}
