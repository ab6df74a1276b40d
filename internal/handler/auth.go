package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/cache"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// AuthHandler implements registration, login and the refresh-token cycle.
// Refresh tokens travel only in an HTTP-only cookie and are tracked in the
// token store so logout revokes them server-side.
type AuthHandler struct {
	store        storage.Store
	jwtManager   *auth.JWTManager
	tokens       cache.TokenStore
	secureCookie bool
	log          zerolog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(store storage.Store, jwtManager *auth.JWTManager, tokens cache.TokenStore, secureCookie bool, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		store:        store,
		jwtManager:   jwtManager,
		tokens:       tokens,
		secureCookie: secureCookie,
		log:          logger.With().Str("component", "auth").Logger(),
	}
}

// RegisterRequest new account payload.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest credential payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse successful login/refresh payload. The refresh token is
// never part of the body.
type AuthResponse struct {
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
}

const refreshCookie = "refresh_token"

// Register creates a new account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and password are required",
		})
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process password",
		})
	}

	user, err := h.store.CreateUser(c.Context(), &model.User{
		Username:  req.Username,
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "username already taken",
			})
		}
		h.log.Error().Err(err).Msg("user creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create user",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"username": user.Username,
	})
}

// Login verifies credentials and issues the token pair.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	user, err := h.store.FindUser(c.Context(), req.Username)
	if err != nil {
		// Same response for unknown user and wrong password.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	accessToken, err := h.jwtManager.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}
	refreshToken, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate refresh token",
		})
	}

	if err := h.tokens.Save(c.Context(), user.Username, refreshToken, h.jwtManager.RefreshExpiry()); err != nil {
		h.log.Error().Str("user", user.Username).Err(err).Msg("refresh token save failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store session",
		})
	}

	h.setRefreshCookie(c, refreshToken)
	return c.JSON(AuthResponse{
		Username:    user.Username,
		AccessToken: accessToken,
	})
}

// Refresh exchanges a valid refresh cookie for a new access token and a
// rotated refresh token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	refreshToken := c.Cookies(refreshCookie)
	if refreshToken == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "refresh token not found",
		})
	}

	claims, err := h.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or expired refresh token",
		})
	}

	valid, err := h.tokens.Validate(c.Context(), claims.Username, refreshToken)
	if err != nil {
		h.log.Error().Str("user", claims.Username).Err(err).Msg("refresh token lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to verify session",
		})
	}
	if !valid {
		h.clearRefreshCookie(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "session has been revoked",
		})
	}

	accessToken, err := h.jwtManager.GenerateAccessToken(claims.UserID, claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}
	newRefresh, err := h.jwtManager.GenerateRefreshToken(claims.UserID, claims.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate refresh token",
		})
	}
	if err := h.tokens.Save(c.Context(), claims.Username, newRefresh, h.jwtManager.RefreshExpiry()); err != nil {
		h.log.Error().Str("user", claims.Username).Err(err).Msg("refresh token rotation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store session",
		})
	}

	h.setRefreshCookie(c, newRefresh)
	return c.JSON(AuthResponse{
		Username:    claims.Username,
		AccessToken: accessToken,
	})
}

// Logout revokes the stored refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if refreshToken := c.Cookies(refreshCookie); refreshToken != "" {
		if claims, err := h.jwtManager.ValidateRefreshToken(refreshToken); err == nil {
			if err := h.tokens.Revoke(c.Context(), claims.Username); err != nil {
				h.log.Warn().Str("user", claims.Username).Err(err).Msg("refresh token revoke failed")
			}
		}
	}
	h.clearRefreshCookie(c)
	return c.JSON(fiber.Map{
		"message": "logged out successfully",
	})
}

func (h *AuthHandler) setRefreshCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.jwtManager.RefreshExpiry().Seconds()),
		Secure:   h.secureCookie,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.secureCookie,
		HTTPOnly: true,
	})
}
