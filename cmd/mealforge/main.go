package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mealforge/mealforge-api/internal/config"
	"github.com/mealforge/mealforge-api/internal/obs"
	"github.com/mealforge/mealforge-api/internal/quota"
	"github.com/mealforge/mealforge-api/internal/server"
	"github.com/mealforge/mealforge-api/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLog := obs.SetupLogger("info")
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := obs.SetupLogger(cfg.Observability.LogLevel)

	// Malformed tier limits must never reach traffic; abort instead.
	profiles, err := quota.BuildProfiles(cfg.Quota.Tiers)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tier profiles")
	}

	postgres, err := storage.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redis, err := storage.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redis.Close()

	log.Info().Msg("connected to postgres and redis")

	srv := server.New(server.Deps{
		Config:   cfg,
		Profiles: profiles,
		Redis:    redis,
		Postgres: postgres,
		Logger:   log,
	})

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
