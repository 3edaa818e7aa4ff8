// Main entrypoint for the social service. Handles config loading, dependency
// injection, and starting the application.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/loveneesh1804/Instagram-server/cmd"
	"github.com/loveneesh1804/Instagram-server/internal/app"
	"github.com/loveneesh1804/Instagram-server/internal/middleware"
	"github.com/loveneesh1804/Instagram-server/internal/platform/mail"
	"github.com/loveneesh1804/Instagram-server/internal/platform/media"
	"github.com/loveneesh1804/Instagram-server/internal/platform/persistence"
	"github.com/loveneesh1804/Instagram-server/internal/platform/presence"
	"github.com/loveneesh1804/Instagram-server/internal/realtime"
	"github.com/loveneesh1804/Instagram-server/socialservice"
	"github.com/loveneesh1804/Instagram-server/socialservice/config"
)

const presenceTTL = 5 * time.Minute

func main() {
	// 1. Setup structured logging. A .env file is optional and only feeds
	// the override stage below.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
	logger := log.With().Str("service", "social-service").Logger()

	// 2. Load the embedded config.yaml and apply environment overrides.
	baseCfg, err := cmd.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to finalize configuration")
	}

	// 3. Create dependencies.
	ctx := context.Background()
	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}

	// 4. Create the credential layer shared by both services.
	tokens, err := middleware.NewTokenManager(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	// 5. Create the two main services. The gateway doubles as the emitter
	// for the HTTP action layer.
	registry := realtime.NewRegistry(logger)
	gateway, err := realtime.NewGateway(
		":"+cfg.WebSocketPort,
		tokens,
		registry,
		deps.Stores.Users,
		deps.Stores.Messages,
		deps.Stores.Notifications,
		deps.Mirror,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create realtime gateway")
	}

	apiService, err := socialservice.New(
		cfg,
		deps.Stores,
		gateway,
		tokens,
		deps.Media,
		deps.Mail,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API service")
	}

	// 6. Run the application.
	app.Run(ctx, logger, apiService, gateway)
}

// newDependencies builds the service dependency container.
func newDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*socialservice.Dependencies, error) {
	if cfg.RunMode == "local" {
		return cmd.NewFakeDependencies(cfg, logger)
	}
	return newProdDependencies(ctx, cfg, logger)
}

// newProdDependencies creates real, production-ready dependencies.
func newProdDependencies(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*socialservice.Dependencies, error) {
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to firestore: %w", err)
	}
	stores, err := persistence.NewStores(fsClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create stores: %w", err)
	}

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cloud storage: %w", err)
	}
	mediaStore, err := media.NewGCSStore(gcsClient, cfg.MediaBucket, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create media store: %w", err)
	}

	mailSender, err := mail.NewSMTPSender(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Username,
		cfg.SMTP.Password,
		cfg.SMTP.From,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail sender: %w", err)
	}

	mirror, err := newPresenceMirror(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &socialservice.Dependencies{
		Stores: stores,
		Media:  mediaStore,
		Mail:   mailSender,
		Mirror: mirror,
	}, nil
}

// newPresenceMirror creates the pluggable presence mirror based on config.
func newPresenceMirror(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (presence.Mirror, error) {
	mirrorType := cfg.PresenceMirror.Type
	logger.Info().Str("type", mirrorType).Msg("Initializing presence mirror...")

	switch mirrorType {
	case "", "none":
		return presence.NewNoop(), nil

	case "redis":
		redisAddr := cfg.PresenceMirror.Redis.Addr
		if redisAddr == "" {
			return nil, fmt.Errorf("presence_mirror type is redis but no address is configured (check REDIS_ADDR env var)")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis presence mirror at %s: %w", redisAddr, err)
		}
		logger.Info().Str("addr", redisAddr).Msg("Connected to Redis presence mirror")
		return presence.NewRedis(rdb, "presence", presenceTTL), nil

	default:
		return nil, fmt.Errorf("invalid presence_mirror type: %s (must be 'none' or 'redis')", mirrorType)
	}
}
