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

// Package node implements ARONIA's swarm integration and admission-control
// policy: the node consults its whitelist and trust configuration when the
// swarm delivers a newly-handshaked stream, constructs peer sessions for
// admitted peers, and routes outbound send/request/broadcast/introduce
// calls through them.
package node

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aronia-net/aronia/config"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/logger"
	"github.com/aronia-net/aronia/internal/metrics"
	"github.com/aronia-net/aronia/session"
	"github.com/aronia-net/aronia/transport"
	"github.com/aronia-net/aronia/trust"
)

// Node is one participant's runtime: its identity, swarm membership,
// admission policy, active peer sessions, pending introductions, and
// method registry. Every field below is mutated only while holding mu, one
// node-wide lock, so session admission, trust changes, and teardown never
// interleave mid-update.
type Node struct {
	self    *identity.KeyPair
	swarm   transport.Swarm
	cfg     *config.NodeConfig
	log     logger.Logger
	metrics *metrics.Registry

	mu                    sync.Mutex
	whitelist             map[identity.PublicKey]struct{}
	autoAcceptFrom        map[identity.PublicKey]struct{}
	requireApprovalFor    map[string]struct{}
	sessions              map[identity.PublicKey]*session.PeerSession
	pendingIntroductions  map[identity.PublicKey]*trust.Introduction
	introductionTrustPath map[identity.PublicKey][]string
	methods               map[string]Handler

	eventsMu     sync.RWMutex
	eventsClosed bool
	events       chan Event

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Handler is a registered RPC method implementation. It returns a JSON-
// marshalable result or an application error; an error maps to a RESPONSE
// whose error.code is "handler-error".
type Handler func(peer identity.PublicKey, params []byte) (interface{}, error)

// New constructs a Node. Call Start to join the swarm and begin admitting
// peers. reg must not be nil; callers that don't care about metrics still
// need one to scrape or simply discard; use metrics.NewRegistry().
func New(self *identity.KeyPair, swarm transport.Swarm, cfg *config.NodeConfig, reg *metrics.Registry) *Node {
	n := &Node{
		self:                  self,
		swarm:                 swarm,
		cfg:                   cfg,
		log:                   logger.GetDefaultLogger().WithFields(logger.String("component", "node"), logger.String("self", self.PublicKey().Hex()[:12])),
		metrics:               reg,
		whitelist:             make(map[identity.PublicKey]struct{}),
		autoAcceptFrom:        make(map[identity.PublicKey]struct{}),
		requireApprovalFor:    make(map[string]struct{}),
		sessions:              make(map[identity.PublicKey]*session.PeerSession),
		pendingIntroductions:  make(map[identity.PublicKey]*trust.Introduction),
		introductionTrustPath: make(map[identity.PublicKey][]string),
		methods:               make(map[string]Handler),
		events:                make(chan Event, 256),
		stopCh:                make(chan struct{}),
	}

	for _, p := range cfg.Trust.Whitelist {
		pk, err := identity.ParsePublicKeyHex(p)
		if err != nil {
			n.log.Warn("ignoring malformed whitelist entry", logger.String("value", p))
			continue
		}
		n.whitelist[pk] = struct{}{}
	}
	for _, p := range cfg.Trust.AutoAcceptFrom {
		pk, err := identity.ParsePublicKeyHex(p)
		if err != nil {
			n.log.Warn("ignoring malformed auto_accept_from entry", logger.String("value", p))
			continue
		}
		n.autoAcceptFrom[pk] = struct{}{}
		n.whitelist[pk] = struct{}{}
	}
	for _, token := range cfg.Trust.RequireApprovalFor {
		n.requireApprovalFor[token] = struct{}{}
	}
	n.metrics.WhitelistSize.Set(float64(len(n.whitelist)))

	n.RegisterMethod("ping", func(_ identity.PublicKey, _ []byte) (interface{}, error) {
		return map[string]interface{}{"pong": true, "timestamp": time.Now().UnixMilli()}, nil
	})

	return n
}

// PublicKey returns the node's own identity.
func (n *Node) PublicKey() identity.PublicKey { return n.self.PublicKey() }

// Events yields node-level events as they're surfaced. The channel is
// closed when Stop completes.
func (n *Node) Events() <-chan Event { return n.events }

// RegisterMethod adds method to the RPC method registry. Registering the
// same name again replaces the previous handler.
func (n *Node) RegisterMethod(name string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods[name] = h
}

// Whitelist adds pubkeys to the admission whitelist before Start, or at any
// later time, via configuration rather than an introduction.
func (n *Node) Whitelist(pubkeys ...identity.PublicKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, pk := range pubkeys {
		n.whitelist[pk] = struct{}{}
	}
	n.metrics.WhitelistSize.Set(float64(len(n.whitelist)))
}

// IsWhitelisted reports whether peer is currently in the admission
// whitelist.
func (n *Node) IsWhitelisted(peer identity.PublicKey) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.whitelist[peer]
	return ok
}

// Peers returns a snapshot of currently active peer sessions.
func (n *Node) Peers() []PeerInfo {
	n.mu.Lock()
	sessions := make([]*session.PeerSession, 0, len(n.sessions))
	for _, s := range n.sessions {
		sessions = append(sessions, s)
	}
	n.mu.Unlock()

	infos := make([]PeerInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, PeerInfo{
			Pubkey:       s.RemotePublicKey(),
			Capabilities: s.Capabilities(),
			ConnectedAt:  s.ConnectedAt(),
			LastSeen:     s.LastSeen(),
			Online:       s.State() == session.StateActive,
		})
	}
	return infos
}

// TopicHash computes H("aronia" || topicName), the 32-byte rendezvous key
// announced and searched on the swarm, using SHA-256 as the digest.
func TopicHash(topicName string) [32]byte {
	return sha256.Sum256(append([]byte("aronia"), []byte(topicName)...))
}

// Start joins the swarm as both announcer and searcher and begins
// admitting inbound connections. It returns once the swarm's Join call
// returns; connection handling continues on a background goroutine.
func (n *Node) Start(ctx context.Context) error {
	topicHash := TopicHash(n.cfg.Topic)
	if err := n.swarm.Join(ctx, topicHash, true, true); err != nil {
		return fmt.Errorf("node: join topic: %w", err)
	}
	go n.acceptLoop()
	return nil
}

func (n *Node) acceptLoop() {
	for {
		select {
		case conn, ok := <-n.swarm.Connections():
			if !ok {
				return
			}
			n.admit(conn.Stream)
		case <-n.stopCh:
			return
		}
	}
}

// sessionConfig derives a session.Config from the node's NodeConfig,
// announcing the currently registered method names as capability tokens.
func (n *Node) sessionConfig() session.Config {
	n.mu.Lock()
	accepts := make([]string, 0, len(n.methods))
	for name := range n.methods {
		accepts = append(accepts, name)
	}
	n.mu.Unlock()
	sort.Strings(accepts)

	return session.Config{
		HeartbeatInterval:     n.cfg.Timing.HeartbeatInterval,
		HeartbeatTimeout:      n.cfg.Timing.HeartbeatTimeout,
		DefaultRequestTimeout: n.cfg.Timing.DefaultRequestTimeout,
		WriteTimeout:          30 * time.Second,
		Accepts:               accepts,
	}
}

// trustConfig derives a trust.Config from the node's NodeConfig.
func (n *Node) trustConfig() trust.Config {
	return trust.Config{
		MaxAge:        n.cfg.Timing.IntroductionMaxAge,
		MaxTrustDepth: n.cfg.Timing.MaxTrustDepth,
	}
}

// Stop destroys every active session concurrently, then leaves the swarm.
// Idempotent. Session teardown runs through an errgroup since nothing
// orders one peer's shutdown relative to another's. No goodbye frame is
// sent; peers detect the severed stream through their liveness timers.
func (n *Node) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		close(n.stopCh)

		n.mu.Lock()
		sessions := make([]*session.PeerSession, 0, len(n.sessions))
		for _, s := range n.sessions {
			sessions = append(sessions, s)
		}
		n.sessions = make(map[identity.PublicKey]*session.PeerSession)
		n.pendingIntroductions = make(map[identity.PublicKey]*trust.Introduction)
		n.introductionTrustPath = make(map[identity.PublicKey][]string)
		n.mu.Unlock()

		var g errgroup.Group
		for _, s := range sessions {
			s := s
			g.Go(func() error {
				s.Destroy()
				return nil
			})
		}
		_ = g.Wait()

		err = n.swarm.Close()

		n.eventsMu.Lock()
		n.eventsClosed = true
		close(n.events)
		n.eventsMu.Unlock()
	})
	return err
}

// activeSession returns the peer session for peer, if any.
func (n *Node) activeSession(peer identity.PublicKey) (*session.PeerSession, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[peer]
	return s, ok
}

// emit surfaces e without blocking the caller's goroutine indefinitely; a
// slow or absent consumer drops events rather than stalling protocol
// processing, logging the drop so it's diagnosable. Late emits racing Stop
// (a session read loop mid-dispatch while the node shuts down) are dropped
// rather than sent on the closed channel.
func (n *Node) emit(e Event) {
	n.eventsMu.RLock()
	defer n.eventsMu.RUnlock()
	if n.eventsClosed {
		return
	}
	select {
	case n.events <- e:
	default:
		n.log.Warn("dropping event, consumer too slow", logger.String("kind", string(e.Kind)))
	}
}
