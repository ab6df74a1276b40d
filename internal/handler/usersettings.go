package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// UserSettingsHandler serves the account settings page.
type UserSettingsHandler struct {
	store storage.Store
	log   zerolog.Logger
}

// NewUserSettingsHandler creates a UserSettingsHandler.
func NewUserSettingsHandler(store storage.Store, logger zerolog.Logger) *UserSettingsHandler {
	return &UserSettingsHandler{
		store: store,
		log:   logger.With().Str("component", "usersettings").Logger(),
	}
}

// Get returns the caller's account data.
func (h *UserSettingsHandler) Get(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	user, err := h.store.FindUser(c.Context(), username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}
		h.log.Error().Str("user", username).Err(err).Msg("user load failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load user",
		})
	}
	return c.JSON(user)
}

// UpdateInfoRequest profile change payload.
type UpdateInfoRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateInfo changes username and display name. A changed username
// invalidates nothing server-side; the client re-authenticates.
func (h *UserSettingsHandler) UpdateInfo(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req UpdateInfoRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	user, err := h.store.UpdateUserInfo(c.Context(), username, req.Username, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "username already taken",
			})
		}
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user not found",
			})
		}
		h.log.Error().Str("user", username).Err(err).Msg("user update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update user",
		})
	}
	return c.JSON(user)
}

// UpdatePasswordRequest password change payload.
type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// UpdatePassword changes the caller's password after verifying the old one.
func (h *UserSettingsHandler) UpdatePassword(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil || req.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "new password is required",
		})
	}

	user, err := h.store.FindUser(c.Context(), username)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}
	if !auth.CheckPassword(user.Password, req.OldPassword) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "wrong password",
		})
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process password",
		})
	}
	if err := h.store.UpdateUserPassword(c.Context(), username, hashed); err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("password update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update password",
		})
	}
	return c.JSON(fiber.Map{
		"message": "password updated",
	})
}
