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

import "fmt"

// ValidationError describes one configuration problem. Level "error" fails
// Load; any other level (e.g. "warning") is surfaced but non-fatal.
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Level, e.Field, e.Message)
}

// ValidateConfiguration checks a NodeConfig for inconsistent or out-of-range
// values. It never mutates cfg.
func ValidateConfiguration(cfg *NodeConfig) []ValidationError {
	var errs []ValidationError

	if cfg.Topic == "" {
		errs = append(errs, ValidationError{Field: "topic", Message: "must not be empty", Level: "error"})
	}

	if cfg.Timing.HeartbeatInterval <= 0 {
		errs = append(errs, ValidationError{Field: "timing.heartbeat_interval", Message: "must be positive", Level: "error"})
	}
	if cfg.Timing.HeartbeatTimeout <= cfg.Timing.HeartbeatInterval {
		errs = append(errs, ValidationError{
			Field:   "timing.heartbeat_timeout",
			Message: "should exceed heartbeat_interval or liveness checks fire spuriously",
			Level:   "warning",
		})
	}
	if cfg.Timing.DefaultRequestTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "timing.default_request_timeout", Message: "must be positive", Level: "error"})
	}
	if cfg.Timing.IntroductionMaxAge <= 0 {
		errs = append(errs, ValidationError{Field: "timing.introduction_max_age", Message: "must be positive", Level: "error"})
	}
	if cfg.Timing.MaxTrustDepth < 1 {
		errs = append(errs, ValidationError{Field: "timing.max_trust_depth", Message: "must be at least 1", Level: "error"})
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: "unrecognized level " + cfg.Logging.Level, Level: "warning"})
	}

	return errs
}
