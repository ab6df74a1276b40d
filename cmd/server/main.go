package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/cache"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/config"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/server"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

func main() {
	cfg := config.Load()

	log := newLogger(cfg.Log)

	ctx := context.Background()
	store, err := storage.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the document store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	tokens := newTokenStore(cfg, log)

	srv := server.New(cfg, store, tokens, log)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

func newTokenStore(cfg *config.Config, log zerolog.Logger) cache.TokenStore {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("Redis not configured, using in-process refresh token store")
		return cache.NewMemoryTokenStore()
	}
	tokens, err := cache.NewRedisTokenStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	return tokens
}
