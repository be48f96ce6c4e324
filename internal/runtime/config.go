package runtime

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings are the environment defaults that flags fall back to.
type Settings struct {
	LogDirectory string `envconfig:"LOG_DIRECTORY"`
	Kubeconfig   string `envconfig:"KUBECONFIG"`
}

func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return s, nil
}
