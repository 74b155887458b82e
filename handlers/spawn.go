package handlers

import (
	"errors"
	"strconv"
	"time"

	"nexus-card-service/middleware"
	"nexus-card-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupSpawnRoutes(app *fiber.App, spawnService *services.SpawnService) {
	// Mutating routes require user context forwarded by the Gateway;
	// nearby polling stays open to any gateway-authenticated client.
	userCtx := middleware.UserContextMiddleware()

	app.Post("/spawns", userCtx, func(c *fiber.Ctx) error {
		type Req struct {
			Lat       float64    `json:"lat"`
			Lon       float64    `json:"lon"`
			CardID    *int64     `json:"card_id,omitempty"`
			ExpiresAt *time.Time `json:"expires_at,omitempty"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		id, err := spawnService.Create(c.Context(), req.Lat, req.Lon, req.CardID, req.ExpiresAt)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid coordinates",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create spawn",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"spawn_id": id})
	})

	app.Post("/spawns/:id/claim", userCtx, func(c *fiber.Ctx) error {
		ok, err := spawnService.Claim(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to claim spawn",
				"cause": err.Error(),
			})
		}
		if !ok {
			// Already claimed/caught, or the spawn never existed.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "spawn is not claimable",
			})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Post("/spawns/:id/catch", userCtx, func(c *fiber.Ctx) error {
		ok, err := spawnService.Catch(c.Context(), c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to catch spawn",
				"cause": err.Error(),
			})
		}
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "spawn not found or not catchable",
			})
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	app.Get("/spawns/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
		if errLat != nil || errLon != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "lat and lon query parameters are required",
			})
		}
		// Non-positive or garbage radius falls back to the default.
		radiusM, _ := strconv.ParseFloat(c.Query("radiusM", "0"), 64)

		features, err := spawnService.Nearby(c.Context(), lat, lon, radiusM)
		if err != nil {
			if errors.Is(err, services.ErrValidation) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid coordinates",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to query nearby spawns",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"features": features})
	})
}
