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

// Package wsswarm is a WebSocket-based reference implementation of
// transport.Swarm, used by cmd/aronianode to run a real (if not DHT-based)
// multi-process node. It performs a signed identity handshake followed by
// an X25519/ChaCha20-Poly1305 key exchange so the stream it hands to the
// node genuinely satisfies "already-encrypted duplex stream with a
// verified remote static public key", the way memswarm does for tests. It
// does not implement Kademlia peer discovery; topic join here means
// "accept inbound connections on ListenAddr and/or dial the configured
// PeerAddrs"; a real DHT-backed swarm is an external collaborator this
// repository never implements.
package wsswarm

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/logger"
	"github.com/aronia-net/aronia/transport"
)

// Config configures a Swarm's network footprint.
type Config struct {
	// ListenAddr, if non-empty, is the address to accept inbound
	// WebSocket connections on (announce).
	ListenAddr string
	// Path is the HTTP path the WebSocket endpoint is served on.
	Path string
	// PeerAddrs are ws:// URLs of peers to dial on Join (search).
	PeerAddrs []string
}

// Swarm implements transport.Swarm over WebSocket connections.
type Swarm struct {
	cfg     Config
	keyPair *identity.KeyPair
	log     logger.Logger

	upgrader websocket.Upgrader

	mu          sync.Mutex
	closed      bool
	server      *http.Server
	connections chan transport.Connection
}

// New creates a Swarm for keyPair with the given network configuration.
func New(keyPair *identity.KeyPair, cfg Config) *Swarm {
	if cfg.Path == "" {
		cfg.Path = "/aronia"
	}
	return &Swarm{
		cfg:     cfg,
		keyPair: keyPair,
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "wsswarm")),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		connections: make(chan transport.Connection, 16),
	}
}

// Join starts listening (if ListenAddr is set) and dials every configured
// peer address. topicHash is accepted for interface compatibility; this
// swarm has no DHT rendezvous and connects to statically configured peers.
func (s *Swarm) Join(ctx context.Context, topicHash [32]byte, announce, search bool) error {
	if announce && s.cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc(s.cfg.Path, s.handleInbound)
		srv := &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}

		s.mu.Lock()
		s.server = srv
		s.mu.Unlock()

		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Error("websocket listener stopped", logger.Error(err))
			}
		}()
	}

	if search {
		for _, addr := range s.cfg.PeerAddrs {
			if err := s.dial(ctx, addr); err != nil {
				s.log.Warn("failed to dial peer", logger.String("addr", addr), logger.Error(err))
			}
		}
	}
	return nil
}

func (s *Swarm) dial(ctx context.Context, addr string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("wsswarm: dial %s: %w", addr, err)
	}
	return s.completeHandshake(conn, true)
}

func (s *Swarm) handleInbound(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.Error(err))
		return
	}
	if err := s.completeHandshake(conn, false); err != nil {
		s.log.Warn("handshake failed", logger.Error(err))
		_ = conn.Close()
	}
}

func (s *Swarm) completeHandshake(conn *websocket.Conn, initiator bool) error {
	remotePub, aead, err := performHandshake(conn, s.keyPair, initiator)
	if err != nil {
		_ = conn.Close()
		return err
	}

	side := byte(0x01)
	if !initiator {
		side = 0x02
	}
	st := newStream(conn, remotePub, aead, side)

	// Deliver under the lock so a concurrent Close cannot close the
	// channel between the check and the send. A full backlog drops the
	// connection rather than blocking the handshake goroutine.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = st.Close()
		return fmt.Errorf("wsswarm: swarm closed")
	}
	select {
	case s.connections <- transport.Connection{Stream: st}:
		return nil
	default:
		_ = st.Close()
		return fmt.Errorf("wsswarm: connection backlog full")
	}
}

// Connections yields a Connection for every successfully handshaked peer.
func (s *Swarm) Connections() <-chan transport.Connection { return s.connections }

// Close stops accepting inbound connections. It does not close already
// delivered streams.
func (s *Swarm) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.server != nil {
		_ = s.server.Close()
	}
	close(s.connections)
	return nil
}
