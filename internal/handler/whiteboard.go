package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/realtime"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// WhiteboardHandler serves whiteboard content and membership changes over
// REST. Drawing itself happens on the realtime connection; this handler
// only loads the persisted board and grows its access list.
type WhiteboardHandler struct {
	store      storage.Store
	authorizer *auth.Authorizer
	registry   *realtime.Registry
	log        zerolog.Logger
}

// NewWhiteboardHandler creates a WhiteboardHandler. The registry is used
// to push live invite notifications to online users.
func NewWhiteboardHandler(store storage.Store, authorizer *auth.Authorizer, registry *realtime.Registry, logger zerolog.Logger) *WhiteboardHandler {
	return &WhiteboardHandler{
		store:      store,
		authorizer: authorizer,
		registry:   registry,
		log:        logger.With().Str("component", "whiteboard").Logger(),
	}
}

// Get returns the full persisted board, strokes included. Member only.
func (h *WhiteboardHandler) Get(c *fiber.Ctx) error {
	whiteboardID := c.Params("id")
	accessToken := c.Locals("accessToken").(string)

	if _, err := h.authorizer.AuthorizeMember(c.Context(), accessToken, whiteboardID); err != nil {
		return unauthorized(c, err)
	}

	whiteboard, err := h.store.FindWhiteboard(c.Context(), whiteboardID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "whiteboard not found",
			})
		}
		h.log.Error().Str("whiteboard", whiteboardID).Err(err).Msg("whiteboard load failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load whiteboard",
		})
	}
	return c.JSON(whiteboard)
}

// InviteRequest membership grant payload.
type InviteRequest struct {
	Username     string `json:"username"`
	WhiteboardID string `json:"whiteboardId"`
}

// Invite adds a user to a board's access list. Owner only. The invited
// user gets a persisted notification and, when online, a live one.
func (h *WhiteboardHandler) Invite(c *fiber.Ctx) error {
	accessToken := c.Locals("accessToken").(string)

	var req InviteRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.WhiteboardID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and whiteboardId are required",
		})
	}

	owner, err := h.authorizer.AuthorizeOwner(c.Context(), accessToken, req.WhiteboardID)
	if err != nil {
		return unauthorized(c, err)
	}

	if err := h.store.InviteUserToWhiteboard(c.Context(), req.Username, req.WhiteboardID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "user or whiteboard not found",
			})
		}
		h.log.Error().Str("whiteboard", req.WhiteboardID).Str("user", req.Username).Err(err).Msg("invite failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to invite user",
		})
	}

	notification := model.Notification{
		Type:      model.NotificationInvite,
		Body:      owner + " invited you to collaborate on a whiteboard",
		CreatedAt: time.Now(),
	}
	if err := h.store.AddNotification(c.Context(), req.Username, notification); err != nil {
		h.log.Warn().Str("user", req.Username).Err(err).Msg("invite notification persist failed")
	}
	if target, ok := h.registry.LookupApplication(req.Username); ok {
		if err := target.Send(realtime.EventReceiveInvite, realtime.UserPayload{Username: owner}); err != nil {
			h.log.Warn().Str("user", req.Username).Err(err).Msg("live invite delivery failed")
		}
	}

	return c.JSON(fiber.Map{
		"message": "user invited",
	})
}

// unauthorized maps gateway errors onto the HTTP status surface shared by
// every protected handler.
func unauthorized(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid Access Token",
			"code":  "TOKEN_EXPIRED",
		})
	case errors.Is(err, auth.ErrInvalidToken):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid Access Token",
		})
	case errors.Is(err, auth.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "unauthorized to this whiteboard",
		})
	case errors.Is(err, storage.ErrNotFound):
		// The membership check resolves the board; a missing board is a
		// missing resource, not an authorization failure.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "whiteboard not found",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "authorization check failed",
		})
	}
}
