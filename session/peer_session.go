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

package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
	"github.com/aronia-net/aronia/internal/logger"
	"github.com/aronia-net/aronia/transport"
)

const (
	agentName    = "aronia"
	agentVersion = "0.1.0"
)

// PeerSession is the in-memory object representing one active encrypted
// stream to one remote pubkey. It owns the stream's read loop, the
// heartbeat/liveness timers, the backpressure-aware write queue, and the
// pending-request table for that peer alone; none of this state is touched
// from more than one goroutine at a time except through the methods below,
// which serialize access internally.
type PeerSession struct {
	self      *identity.KeyPair
	remote    identity.PublicKey
	stream    transport.Stream
	cfg       Config
	handlers  Handlers
	log       logger.Logger

	mu           sync.Mutex
	state        State
	caps         frame.Capabilities
	connectedAt  time.Time
	lastSeen     time.Time
	pending      map[uint64]*pendingRequest
	nextReqID    uint64

	heartbeatTimer *time.Timer
	livenessTimer  *time.Timer

	writeQueue *writeQueue

	closeOnce sync.Once
	done      chan struct{}
}

type pendingRequest struct {
	resolve func(json.RawMessage)
	reject  func(error)
	timer   *time.Timer
}

// New constructs a PeerSession in state NEW over an already-authenticated
// stream. Call Start once the handshake is considered complete to begin
// the capability exchange and timers.
func New(self *identity.KeyPair, stream transport.Stream, cfg Config, handlers Handlers) *PeerSession {
	now := time.Now()
	s := &PeerSession{
		self:        self,
		remote:      stream.RemoteStaticPublicKey(),
		stream:      stream,
		cfg:         cfg,
		handlers:    handlers,
		log:         logger.GetDefaultLogger().WithFields(logger.String("component", "session"), logger.String("peer", stream.RemoteStaticPublicKey().Hex()[:12])),
		state:       StateNew,
		connectedAt: now,
		lastSeen:    now,
		pending:     make(map[uint64]*pendingRequest),
		// Seed the request counter from connectedAt so ids never collide
		// with a previous session to the same peer across a reconnect.
		nextReqID: uint64(now.UnixMilli()),
		done:      make(chan struct{}),
	}
	s.writeQueue = newWriteQueue(stream, cfg.WriteTimeout)
	return s
}

// RemotePublicKey returns the session's peer identity.
func (s *PeerSession) RemotePublicKey() identity.PublicKey { return s.remote }

// State returns the session's current lifecycle state.
func (s *PeerSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectedAt returns when the session was created.
func (s *PeerSession) ConnectedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectedAt
}

// LastSeen returns the timestamp of the most recently verified inbound frame.
func (s *PeerSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Capabilities returns the peer's last-known capabilities.
func (s *PeerSession) Capabilities() frame.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Start transitions NEW -> HANDSHAKED -> ACTIVE: sends this node's
// capabilities frame, arms the heartbeat and liveness timers, and starts
// the read loop. It must be called exactly once.
func (s *PeerSession) Start() error {
	s.mu.Lock()
	if s.state != StateNew {
		s.mu.Unlock()
		return aerrors.Of(aerrors.KindProtocol)
	}
	s.state = StateHandshaked
	s.mu.Unlock()

	caps := frame.Capabilities{Agent: agentName, Version: agentVersion, Accepts: s.cfg.Accepts}
	payload, err := json.Marshal(frame.ControlPayload{Type: frame.ControlCapabilities, Data: mustJSON(caps)})
	if err != nil {
		return fmt.Errorf("session: marshal capabilities: %w", err)
	}
	f := frame.Sign(s.self, frame.TypeControl, 0, payload)

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()

	if err := s.writeQueue.enqueue(frame.Serialize(f)); err != nil {
		return err
	}

	s.mu.Lock()
	s.armHeartbeatLocked()
	s.armLivenessLocked()
	s.mu.Unlock()

	go s.readLoop()
	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// readLoop consumes whole wire frames from the transport until it closes.
func (s *PeerSession) readLoop() {
	for {
		select {
		case raw, ok := <-s.stream.Frames():
			if !ok {
				s.Destroy()
				return
			}
			s.handleInbound(raw)
		case <-s.done:
			return
		}
	}
}

func (s *PeerSession) handleInbound(raw []byte) {
	f, err := frame.Parse(raw)
	if err != nil {
		s.surfaceProtocolError(err)
		return
	}
	if !frame.Verify(f) {
		s.surfaceProtocolError(aerrors.New(aerrors.KindAuthentication, "signature verification failed"))
		return
	}
	if f.Sender != s.remote {
		s.surfaceProtocolError(aerrors.New(aerrors.KindProtocol, "sender identity mismatch"))
		return
	}

	s.mu.Lock()
	s.lastSeen = time.Now()
	s.armLivenessLocked()
	s.mu.Unlock()

	s.Dispatch(f)
}

func (s *PeerSession) surfaceProtocolError(err error) {
	if s.handlers.OnProtocolError != nil {
		s.handlers.OnProtocolError(s.remote, err)
	}
}

// Destroy transitions the session to CLOSED: cancels both timers, fails
// every pending request with PeerOffline, and closes the stream. Idempotent.
func (s *PeerSession) Destroy() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		if s.heartbeatTimer != nil {
			s.heartbeatTimer.Stop()
		}
		if s.livenessTimer != nil {
			s.livenessTimer.Stop()
		}
		pending := s.pending
		s.pending = make(map[uint64]*pendingRequest)
		s.mu.Unlock()

		for _, p := range pending {
			p.timer.Stop()
			p.reject(aerrors.Of(aerrors.KindPeerOffline))
		}

		close(s.done)
		_ = s.stream.Close()
		s.writeQueue.stop()

		if s.handlers.OnClosed != nil {
			s.handlers.OnClosed(s.remote)
		}
	})
}
