package app

import (
	"errors"
	"fmt"
)

// Modes the application can run in.
const (
	ModeCheck     = "check"
	ModeClassify  = "classify"
	ModeLearnSpam = "learn-spam"
	ModeLearnHam  = "learn-ham"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // hcl files describing the pipeline
	Mode       string // one of the Mode* constants
	InputPath  string // content to classify or learn, for the non-check modes

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}

	switch cfg.Mode {
	case "":
		cfg.Mode = ModeCheck
	case ModeCheck, ModeClassify, ModeLearnSpam, ModeLearnHam:
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	if cfg.Mode != ModeCheck && cfg.InputPath == "" {
		return nil, fmt.Errorf("mode %q requires an input path", cfg.Mode)
	}

	return &cfg, nil
}
