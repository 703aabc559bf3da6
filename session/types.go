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

// Package session implements the per-connection state machine ARONIA runs
// over one authenticated, encrypted transport.Stream to a single remote
// peer: handshake completion, capability exchange, heartbeat-maintained
// liveness, RPC request multiplexing, and a backpressure-aware write path.
package session

import (
	"time"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
)

// State is one of the four lifecycle states a PeerSession passes through.
type State int

const (
	StateNew State = iota
	StateHandshaked
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaked:
		return "handshaked"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds the per-session timing policy, scoped down from the node's
// TimingConfig to what a session needs.
type Config struct {
	HeartbeatInterval     time.Duration
	HeartbeatTimeout      time.Duration
	DefaultRequestTimeout time.Duration
	WriteTimeout          time.Duration

	// Accepts is the capability token list announced in this side's
	// capabilities frame, typically the node's registered method names.
	Accepts []string
}

// DefaultConfig returns the protocol's default timing values.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:     30 * time.Second,
		HeartbeatTimeout:      90 * time.Second,
		DefaultRequestTimeout: 30 * time.Second,
		WriteTimeout:          30 * time.Second,
	}
}

// Handlers are the callbacks a session invokes to surface protocol events
// and requests up to the owning node; Dispatch never blocks on them for
// long, but they do run on the session's own goroutine.
type Handlers struct {
	// OnCapabilities is called when the peer's capabilities change.
	OnCapabilities func(peer identity.PublicKey, caps frame.Capabilities)
	// OnRequest handles an inbound REQUEST and returns a result or error;
	// the session turns either into a signed RESPONSE frame.
	OnRequest func(peer identity.PublicKey, method string, params []byte) (result interface{}, rpcErr *frame.ResponseError)
	// OnEvent surfaces an inbound EVENT payload to the application.
	OnEvent func(peer identity.PublicKey, payload []byte)
	// OnIntroduce surfaces an inbound INTRODUCE frame's raw payload.
	OnIntroduce func(peer identity.PublicKey, payload []byte)
	// OnProtocolError surfaces a non-fatal protocol violation.
	OnProtocolError func(peer identity.PublicKey, err error)
	// OnClosed is called exactly once when the session transitions to
	// StateClosed, however that happened.
	OnClosed func(peer identity.PublicKey)
}
