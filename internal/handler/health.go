package handler

import "github.com/gofiber/fiber/v2"

// Health liveness probe.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
