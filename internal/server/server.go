package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/cache"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/config"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/handler"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/realtime"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// Server wires the Fiber app, the REST handlers and the realtime
// coordinator together.
type Server struct {
	app        *fiber.App
	cfg        *config.Config
	log        zerolog.Logger
	jwtManager *auth.JWTManager

	coordinator         *realtime.Coordinator
	authHandler         *handler.AuthHandler
	profileHandler      *handler.ProfileHandler
	userSettingsHandler *handler.UserSettingsHandler
	whiteboardHandler   *handler.WhiteboardHandler
}

// New builds the server and all its handlers.
func New(cfg *config.Config, store storage.Store, tokens cache.TokenStore, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:         "Collaborative Whiteboard API",
		ServerHeader:    "Fiber",
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		Prefork:         false, // incompatible with in-process presence state
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	authorizer := auth.NewAuthorizer(jwtManager, store)
	registry := realtime.NewRegistry()
	coordinator := realtime.NewCoordinator(authorizer, store, registry, cfg.WebSocket.WriteTimeout, log)

	return &Server{
		app:                 app,
		cfg:                 cfg,
		log:                 log.With().Str("component", "server").Logger(),
		jwtManager:          jwtManager,
		coordinator:         coordinator,
		authHandler:         handler.NewAuthHandler(store, jwtManager, tokens, cfg.Auth.SecureCookie, log),
		profileHandler:      handler.NewProfileHandler(store, authorizer, log),
		userSettingsHandler: handler.NewUserSettingsHandler(store, log),
		whiteboardHandler:   handler.NewWhiteboardHandler(store, authorizer, registry, log),
	}
}

// App exposes the Fiber app for handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes installs the REST routes and the websocket endpoint.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", handler.Health)

	// Brute-force protection on the credential endpoints only.
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	protected := auth.Middleware(s.jwtManager)

	authGroup := s.app.Group("/api/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/refresh", authLimiter, s.authHandler.Refresh)
	authGroup.Post("/logout", s.authHandler.Logout)

	profileGroup := s.app.Group("/api/profile", protected)
	profileGroup.Get("/whiteboards", s.profileHandler.ListWhiteboards)
	profileGroup.Post("/whiteboards", s.profileHandler.CreateWhiteboard)
	profileGroup.Put("/whiteboards/:id", s.profileHandler.UpdateWhiteboard)
	profileGroup.Delete("/whiteboards/:id", s.profileHandler.DeleteWhiteboard)
	profileGroup.Get("/users", s.profileHandler.SearchUsers)
	profileGroup.Get("/notifications", s.profileHandler.Notifications)
	profileGroup.Post("/notifications", s.profileHandler.AddNotification)
	profileGroup.Delete("/notifications/:id", s.profileHandler.DeleteNotification)
	profileGroup.Put("/notifications/:id/read", s.profileHandler.MarkNotificationRead)
	profileGroup.Get("/notifications/unread/count", s.profileHandler.UnreadNotificationCount)

	settingsGroup := s.app.Group("/api/userSetting", protected)
	settingsGroup.Get("/", s.userSettingsHandler.Get)
	settingsGroup.Put("/info", s.userSettingsHandler.UpdateInfo)
	settingsGroup.Put("/password", s.userSettingsHandler.UpdatePassword)

	whiteboardGroup := s.app.Group("/api/whiteboard", protected)
	whiteboardGroup.Get("/:id", s.whiteboardHandler.Get)
	whiteboardGroup.Put("/invite", s.whiteboardHandler.Invite)

	// The realtime endpoint. The token travels as a query parameter at
	// upgrade time; per-event credentials are still checked afterwards, so
	// a missing token here only leaves the connection inert.
	s.app.Get("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals("accessToken", c.Query("accessToken"))
		return c.Next()
	}, websocket.New(s.coordinator.HandleConnection, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the listener with graceful shutdown on SIGINT/SIGTERM.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info().Msg("shutting down server")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	s.log.Info().Str("addr", s.cfg.Server.Port).Msg("server starting")
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
