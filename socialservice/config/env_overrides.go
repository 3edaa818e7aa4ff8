package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/rs/zerolog"
)

// envOverrides mirrors the AppConfig fields that may be supplied or replaced
// through the environment. Every field is optional at decode time; required
// values are checked after the merge.
type envOverrides struct {
	ProjectID     string `env:"GCP_PROJECT_ID"`
	RunMode       string `env:"RUN_MODE"`
	APIPort       string `env:"API_PORT"`
	WebSocketPort string `env:"WEBSOCKET_PORT"`
	JWTSecret     string `env:"JWT_SECRET"`
	CorsOrigins   string `env:"CORS_ALLOWED_ORIGINS"`
	RedisAddr     string `env:"REDIS_ADDR"`
	MediaBucket   string `env:"MEDIA_BUCKET"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SMTPFrom      string `env:"SMTP_FROM"`
}

// UpdateConfigWithEnvOverrides takes the base configuration (created from
// YAML) and completes it by applying environment variables and final
// validation.
func UpdateConfigWithEnvOverrides(cfg *AppConfig, logger zerolog.Logger) (*AppConfig, error) {
	logger.Debug().Msg("Applying environment variable overrides...")

	var env envOverrides
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment overrides: %w", err)
	}

	if env.ProjectID != "" {
		cfg.ProjectID = env.ProjectID
	}
	if env.RunMode != "" {
		cfg.RunMode = env.RunMode
	}
	if env.APIPort != "" {
		cfg.APIPort = env.APIPort
	}
	if env.WebSocketPort != "" {
		cfg.WebSocketPort = env.WebSocketPort
	}
	if env.JWTSecret != "" {
		cfg.JWTSecret = env.JWTSecret
	}
	if env.RedisAddr != "" {
		cfg.PresenceMirror.Redis.Addr = env.RedisAddr
	}
	if env.MediaBucket != "" {
		cfg.MediaBucket = env.MediaBucket
	}
	if env.SMTPHost != "" {
		cfg.SMTP.Host = env.SMTPHost
	}
	if env.SMTPPort != 0 {
		cfg.SMTP.Port = env.SMTPPort
	}
	if env.SMTPUsername != "" {
		cfg.SMTP.Username = env.SMTPUsername
	}
	if env.SMTPPassword != "" {
		cfg.SMTP.Password = env.SMTPPassword
	}
	if env.SMTPFrom != "" {
		cfg.SMTP.From = env.SMTPFrom
	}
	if env.CorsOrigins != "" {
		var origins []string
		for _, o := range strings.Split(env.CorsOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
		cfg.CorsAllowedOrigins = origins
	}

	local := cfg.RunMode == "local"
	if cfg.JWTSecret == "" {
		if !local {
			return nil, fmt.Errorf("JWT_SECRET is not set")
		}
		logger.Warn().Msg("JWT_SECRET not set, using an insecure local-only default.")
		cfg.JWTSecret = "local-dev-secret"
	}
	if !local {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("GCP_PROJECT_ID is not set in config or env var")
		}
		if cfg.MediaBucket == "" {
			return nil, fmt.Errorf("MEDIA_BUCKET is not set in config or env var")
		}
	}

	logger.Debug().Msg("Configuration finalized and validated successfully")
	return cfg, nil
}
