package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours  bool   `envconfig:"E2E_COLOURS" default:"true"`
	DoctorID string `envconfig:"E2E_DOCTOR_ID" default:"doc-e2e"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
