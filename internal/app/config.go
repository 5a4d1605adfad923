package app

import (
	"github.com/specialistvlad/topomirror/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Path is the HCL file the settings came from, watched while running.
	// Empty when the daemon runs on defaults and flags alone.
	Path string

	config.Config
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
