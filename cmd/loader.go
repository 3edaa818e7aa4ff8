package cmd

import (
	_ "embed" // Required for go:embed
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/loveneesh1804/Instagram-server/socialservice/config"
)

//go:embed socialservice/config.yaml
var configFile []byte

// Load parses the embedded configuration file for the service.
func Load() (*config.AppConfig, error) {
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	return config.NewConfigFromYaml(&yamlCfg)
}
