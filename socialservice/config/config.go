package config

// YamlRedisConfig locates the optional Redis instance used for the presence
// mirror.
type YamlRedisConfig struct {
	Addr string `yaml:"addr"`
}

// YamlPresenceMirrorConfig selects how connection presence is shared.
type YamlPresenceMirrorConfig struct {
	Type  string          `yaml:"type"` // "none" or "redis"
	Redis YamlRedisConfig `yaml:"redis"`
}

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// YamlMediaConfig names the bucket that stores uploaded images.
type YamlMediaConfig struct {
	Bucket string `yaml:"bucket"`
}

// YamlSMTPConfig locates the outbound mail relay. Credentials come from the
// environment, never from the embedded file.
type YamlSMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	From string `yaml:"from"`
}

// YamlConfig defines the structure for unmarshaling the embedded config.yaml
// file.
type YamlConfig struct {
	ProjectID      string                   `yaml:"project_id"`
	RunMode        string                   `yaml:"run_mode"`
	APIPort        string                   `yaml:"api_port"`
	WebSocketPort  string                   `yaml:"websocket_port"`
	Cors           YamlCorsConfig           `yaml:"cors"`
	PresenceMirror YamlPresenceMirrorConfig `yaml:"presence_mirror"`
	Media          YamlMediaConfig          `yaml:"media"`
	SMTP           YamlSMTPConfig           `yaml:"smtp"`
}

// SMTPConfig is the finalized mail relay configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// AppConfig is the canonical, validated configuration object used throughout
// the application. It is created by NewConfigFromYaml (stage 1) and finalized
// by UpdateConfigWithEnvOverrides (stage 2).
type AppConfig struct {
	ProjectID          string
	RunMode            string
	APIPort            string
	WebSocketPort      string
	JWTSecret          string
	CorsAllowedOrigins []string
	PresenceMirror     YamlPresenceMirrorConfig
	MediaBucket        string
	SMTP               SMTPConfig
}

// NewConfigFromYaml converts the raw unmarshaled data into a base AppConfig.
// Environment overrides and validation happen in stage 2.
func NewConfigFromYaml(yamlCfg *YamlConfig) (*AppConfig, error) {
	return &AppConfig{
		ProjectID:          yamlCfg.ProjectID,
		RunMode:            yamlCfg.RunMode,
		APIPort:            yamlCfg.APIPort,
		WebSocketPort:      yamlCfg.WebSocketPort,
		CorsAllowedOrigins: yamlCfg.Cors.AllowedOrigins,
		PresenceMirror:     yamlCfg.PresenceMirror,
		MediaBucket:        yamlCfg.Media.Bucket,
		SMTP: SMTPConfig{
			Host: yamlCfg.SMTP.Host,
			Port: yamlCfg.SMTP.Port,
			From: yamlCfg.SMTP.From,
		},
	}, nil
}
