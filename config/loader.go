// ARONIA - Realtime Peer-to-Peer Agent Communication Fabric
// Copyright (C) 2025 ARONIA-project
//
// This file is part of ARONIA.
//
// ARONIA is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ARONIA is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with ARONIA. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// DotEnvFile, if non-empty, is loaded into the process environment
	// before overrides are applied (local-development convenience).
	DotEnvFile string
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:   "config",
		Environment: "",
		DotEnvFile:  ".env",
	}
}

// Load loads configuration with automatic environment detection: an
// environment-specific file, falling back to default.yaml, falling back to
// config.yaml, falling back to built-in defaults; then ARONIA_* environment
// variable overrides; then validation.
func Load(opts ...LoaderOptions) (*NodeConfig, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.DotEnvFile != "" {
		if _, err := os.Stat(options.DotEnvFile); err == nil {
			_ = godotenv.Load(options.DotEnvFile)
		}
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &NodeConfig{Environment: env}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		errs := ValidateConfiguration(cfg)
		for _, e := range errs {
			if e.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file.
func loadConfigFile(path string) (*NodeConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides cfg with ARONIA_* environment
// variables, the highest-priority configuration source.
func applyEnvironmentOverrides(cfg *NodeConfig) {
	if v := os.Getenv("ARONIA_TOPIC"); v != "" {
		cfg.Topic = v
	}
	if v := os.Getenv("ARONIA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := os.Getenv("ARONIA_HEARTBEAT_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Timing.HeartbeatInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ARONIA_HEARTBEAT_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Timing.HeartbeatTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ARONIA_REQUEST_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Timing.DefaultRequestTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ARONIA_INTRODUCTION_MAX_AGE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Timing.IntroductionMaxAge = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ARONIA_MAX_TRUST_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Timing.MaxTrustDepth = n
		}
	}

	if v := os.Getenv("ARONIA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARONIA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("ARONIA_METRICS_ENABLED"); v == "true" {
		cfg.Metrics.Enabled = true
	} else if v == "false" {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*NodeConfig, error) {
	opts := DefaultLoaderOptions()
	opts.Environment = environment
	return Load(opts)
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *NodeConfig {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
