package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// ProfileHandler serves the dashboard: the caller's whiteboards, user
// search and the notification inbox.
type ProfileHandler struct {
	store      storage.Store
	authorizer *auth.Authorizer
	log        zerolog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(store storage.Store, authorizer *auth.Authorizer, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		store:      store,
		authorizer: authorizer,
		log:        logger.With().Str("component", "profile").Logger(),
	}
}

// ListWhiteboards returns every whiteboard the caller can access.
func (h *ProfileHandler) ListWhiteboards(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	whiteboards, err := h.store.ListWhiteboards(c.Context(), username)
	if err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("whiteboard list failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list whiteboards",
		})
	}
	return c.JSON(fiber.Map{
		"whiteboards": whiteboards,
	})
}

// CreateWhiteboardRequest new board payload.
type CreateWhiteboardRequest struct {
	Name string `json:"name"`
}

// CreateWhiteboard creates a board owned by the caller.
func (h *ProfileHandler) CreateWhiteboard(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req CreateWhiteboardRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "whiteboard name is required",
		})
	}

	whiteboard, err := h.store.CreateWhiteboard(c.Context(), req.Name, username)
	if err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("whiteboard creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create whiteboard",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(whiteboard)
}

// UpdateWhiteboardRequest rename payload.
type UpdateWhiteboardRequest struct {
	Name string `json:"name"`
}

// UpdateWhiteboard renames a board. Owner only.
func (h *ProfileHandler) UpdateWhiteboard(c *fiber.Ctx) error {
	whiteboardID := c.Params("id")
	accessToken := c.Locals("accessToken").(string)

	var req UpdateWhiteboardRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "whiteboard name is required",
		})
	}

	if _, err := h.authorizer.AuthorizeOwner(c.Context(), accessToken, whiteboardID); err != nil {
		return unauthorized(c, err)
	}

	if err := h.store.UpdateWhiteboard(c.Context(), whiteboardID, req.Name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "whiteboard not found",
			})
		}
		h.log.Error().Str("whiteboard", whiteboardID).Err(err).Msg("whiteboard rename failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update whiteboard",
		})
	}
	return c.JSON(fiber.Map{
		"message": "whiteboard updated",
	})
}

// DeleteWhiteboard removes a board. Owner only.
func (h *ProfileHandler) DeleteWhiteboard(c *fiber.Ctx) error {
	whiteboardID := c.Params("id")
	accessToken := c.Locals("accessToken").(string)

	if _, err := h.authorizer.AuthorizeOwner(c.Context(), accessToken, whiteboardID); err != nil {
		return unauthorized(c, err)
	}

	if err := h.store.DeleteWhiteboard(c.Context(), whiteboardID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "whiteboard not found",
			})
		}
		h.log.Error().Str("whiteboard", whiteboardID).Err(err).Msg("whiteboard delete failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete whiteboard",
		})
	}
	return c.JSON(fiber.Map{
		"message": "whiteboard deleted",
	})
}

// SearchUsers finds users by first name for the invite dialog. Results are
// annotated with whether they already belong to the given board.
func (h *ProfileHandler) SearchUsers(c *fiber.Ctx) error {
	filter := storage.UserFilter{
		Username:     c.Query("username"),
		Excludes:     c.Query("excludes"),
		WhiteboardID: c.Query("whiteboardId"),
	}

	matches, err := h.store.SearchUsers(c.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("user search failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to search users",
		})
	}
	return c.JSON(fiber.Map{
		"users": matches,
	})
}

// Notifications returns the caller's inbox.
func (h *ProfileHandler) Notifications(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	notifications, err := h.store.Notifications(c.Context(), username)
	if err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("notification list failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list notifications",
		})
	}
	return c.JSON(fiber.Map{
		"notifications": notifications,
	})
}

// AddNotificationRequest inbox insert payload.
type AddNotificationRequest struct {
	Type string `json:"type"`
	Body string `json:"body"`
}

// AddNotification stores a notification for the caller.
func (h *ProfileHandler) AddNotification(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	var req AddNotificationRequest
	if err := c.BodyParser(&req); err != nil || req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "notification body is required",
		})
	}
	if req.Type == "" {
		req.Type = model.NotificationInfo
	}

	err := h.store.AddNotification(c.Context(), username, model.Notification{
		Type:      req.Type,
		Body:      req.Body,
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("notification insert failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to add notification",
		})
	}
	return c.SendStatus(fiber.StatusCreated)
}

// DeleteNotification removes one notification by id.
func (h *ProfileHandler) DeleteNotification(c *fiber.Ctx) error {
	notificationID := c.Params("id")

	if err := h.store.DeleteNotification(c.Context(), notificationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "notification not found",
			})
		}
		h.log.Error().Str("notification", notificationID).Err(err).Msg("notification delete failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete notification",
		})
	}
	return c.JSON(fiber.Map{
		"message": "notification deleted",
	})
}

// MarkNotificationRead flags one notification as visualized.
func (h *ProfileHandler) MarkNotificationRead(c *fiber.Ctx) error {
	notificationID := c.Params("id")

	if err := h.store.MarkNotificationRead(c.Context(), notificationID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "notification not found",
			})
		}
		h.log.Error().Str("notification", notificationID).Err(err).Msg("notification update failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update notification",
		})
	}
	return c.JSON(fiber.Map{
		"message": "notification marked as read",
	})
}

// UnreadNotificationCount returns the caller's unread badge count.
func (h *ProfileHandler) UnreadNotificationCount(c *fiber.Ctx) error {
	username := c.Locals("username").(string)

	count, err := h.store.UnreadNotificationCount(c.Context(), username)
	if err != nil {
		h.log.Error().Str("user", username).Err(err).Msg("unread count failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to count notifications",
		})
	}
	return c.JSON(fiber.Map{
		"count": count,
	})
}
