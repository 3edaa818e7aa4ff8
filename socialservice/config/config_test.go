package config_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/loveneesh1804/Instagram-server/socialservice/config"
)

const sampleYaml = `
project_id: "test-project"
run_mode: "production"
api_port: "8080"
websocket_port: "8081"
cors:
  allowed_origins:
    - "https://app.example.com"
presence_mirror:
  type: "redis"
  redis:
    addr: "localhost:6379"
media:
  bucket: "test-media"
smtp:
  host: "smtp.example.com"
  port: 587
  from: "no-reply@example.com"
`

func baseConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	var yamlCfg config.YamlConfig
	require.NoError(t, yaml.Unmarshal([]byte(sampleYaml), &yamlCfg))
	cfg, err := config.NewConfigFromYaml(&yamlCfg)
	require.NoError(t, err)
	return cfg
}

func TestNewConfigFromYaml(t *testing.T) {
	cfg := baseConfig(t)

	assert.Equal(t, "test-project", cfg.ProjectID)
	assert.Equal(t, "production", cfg.RunMode)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "8081", cfg.WebSocketPort)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CorsAllowedOrigins)
	assert.Equal(t, "redis", cfg.PresenceMirror.Type)
	assert.Equal(t, "localhost:6379", cfg.PresenceMirror.Redis.Addr)
	assert.Equal(t, "test-media", cfg.MediaBucket)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "no-reply@example.com", cfg.SMTP.From)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("API_PORT", "9090")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(t), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWTSecret)
	assert.Equal(t, "9090", cfg.APIPort)
	assert.Equal(t, "redis.internal:6379", cfg.PresenceMirror.Redis.Addr)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CorsAllowedOrigins)
	// Untouched values survive the merge.
	assert.Equal(t, "8081", cfg.WebSocketPort)
}

func TestEnvOverrides_JWTSecretRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := config.UpdateConfigWithEnvOverrides(baseConfig(t), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestEnvOverrides_LocalModeDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RUN_MODE", "local")

	cfg := baseConfig(t)
	cfg.ProjectID = ""
	cfg.MediaBucket = ""

	got, err := config.UpdateConfigWithEnvOverrides(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, got.JWTSecret)
}
