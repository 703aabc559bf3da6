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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeConfig is the full configuration for one ARONIA node: the timing and
// trust parameters the core protocol needs, plus the ambient fields needed
// to actually run a process (listen address, topic, logging).
type NodeConfig struct {
	Environment string `yaml:"environment" json:"environment"`

	Topic      string   `yaml:"topic" json:"topic"`
	ListenAddr string   `yaml:"listen_addr" json:"listen_addr"`
	PeerAddrs  []string `yaml:"peer_addrs" json:"peer_addrs"`

	Timing  TimingConfig  `yaml:"timing" json:"timing"`
	Trust   TrustConfig   `yaml:"trust" json:"trust"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// TimingConfig holds the protocol's tunable durations.
type TimingConfig struct {
	HeartbeatInterval     time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	HeartbeatTimeout      time.Duration `yaml:"heartbeat_timeout" json:"heartbeat_timeout"`
	DefaultRequestTimeout time.Duration `yaml:"default_request_timeout" json:"default_request_timeout"`
	IntroductionMaxAge    time.Duration `yaml:"introduction_max_age" json:"introduction_max_age"`
	MaxTrustDepth         int           `yaml:"max_trust_depth" json:"max_trust_depth"`
}

// TrustConfig holds the node's static admission and trust-delegation
// policy.
type TrustConfig struct {
	Whitelist          []string `yaml:"whitelist" json:"whitelist"`
	AutoAcceptFrom     []string `yaml:"auto_accept_from" json:"auto_accept_from"`
	RequireApprovalFor []string `yaml:"require_approval_for" json:"require_approval_for"`
}

// UnmarshalYAML decodes the timing block, accepting both human-readable
// duration strings ("15s", "24h") and raw nanosecond integers, which is
// what yaml.Marshal emits for time.Duration on a save/load round trip.
func (t *TimingConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		HeartbeatInterval     yaml.Node `yaml:"heartbeat_interval"`
		HeartbeatTimeout      yaml.Node `yaml:"heartbeat_timeout"`
		DefaultRequestTimeout yaml.Node `yaml:"default_request_timeout"`
		IntroductionMaxAge    yaml.Node `yaml:"introduction_max_age"`
		MaxTrustDepth         int       `yaml:"max_trust_depth"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.MaxTrustDepth = raw.MaxTrustDepth

	for _, f := range []struct {
		node *yaml.Node
		dst  *time.Duration
	}{
		{&raw.HeartbeatInterval, &t.HeartbeatInterval},
		{&raw.HeartbeatTimeout, &t.HeartbeatTimeout},
		{&raw.DefaultRequestTimeout, &t.DefaultRequestTimeout},
		{&raw.IntroductionMaxAge, &t.IntroductionMaxAge},
	} {
		if f.node.Kind == 0 {
			continue
		}
		if err := decodeDuration(f.node, f.dst); err != nil {
			return err
		}
	}
	return nil
}

func decodeDuration(n *yaml.Node, dst *time.Duration) error {
	var ns int64
	if err := n.Decode(&ns); err == nil {
		*dst = time.Duration(ns)
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value %q", n.Value)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration value %q: %w", s, err)
	}
	*dst = d
	return nil
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML (or, as a fallback, JSON)
// file and applies defaults for anything left unset.
func LoadFromFile(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &NodeConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format by the
// path's extension (".json" or otherwise YAML).
func SaveToFile(cfg *NodeConfig, path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setDefaults fills in unset fields with the protocol's documented
// defaults.
func setDefaults(cfg *NodeConfig) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Topic == "" {
		cfg.Topic = "aronia"
	}

	if cfg.Timing.HeartbeatInterval == 0 {
		cfg.Timing.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Timing.HeartbeatTimeout == 0 {
		cfg.Timing.HeartbeatTimeout = 90 * time.Second
	}
	if cfg.Timing.DefaultRequestTimeout == 0 {
		cfg.Timing.DefaultRequestTimeout = 30 * time.Second
	}
	if cfg.Timing.IntroductionMaxAge == 0 {
		cfg.Timing.IntroductionMaxAge = 24 * time.Hour
	}
	if cfg.Timing.MaxTrustDepth == 0 {
		cfg.Timing.MaxTrustDepth = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
