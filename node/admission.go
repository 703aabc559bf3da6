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

package node

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/logger"
	"github.com/aronia-net/aronia/session"
	"github.com/aronia-net/aronia/transport"
)

// admit runs the admission procedure against a newly-handshaked stream:
// reject if the remote pubkey isn't whitelisted, ignore a duplicate if a
// session for it already exists, otherwise construct and start a peer
// session and store it.
func (n *Node) admit(stream transport.Stream) {
	remote := stream.RemoteStaticPublicKey()

	n.mu.Lock()
	_, whitelisted := n.whitelist[remote]
	if !whitelisted {
		n.mu.Unlock()
		n.metrics.SessionsCreated.WithLabelValues("rejected").Inc()
		_ = stream.Close()
		n.emit(Event{Kind: EventPeerRejected, Peer: remote, PeerRejected: &ReasonData{Pubkey: remote, Reason: "not whitelisted"}})
		return
	}
	if _, exists := n.sessions[remote]; exists {
		n.mu.Unlock()
		// Invariant: at most one active session per remote pubkey. Keep
		// the old one, discard the new stream.
		_ = stream.Close()
		return
	}
	n.mu.Unlock()

	sessionID := uuid.NewString()
	log := n.log.WithFields(logger.String("peer", remote.Hex()[:12]), logger.String("session_id", sessionID))

	sess := session.New(n.self, stream, n.sessionConfig(), session.Handlers{
		OnCapabilities: func(peer identity.PublicKey, caps frame.Capabilities) {
			n.metrics.FramesReceived.WithLabelValues(frame.TypeControl.String()).Inc()
			capsCopy := caps
			n.emit(Event{Kind: EventCapabilities, Peer: peer, Capabilities: &capsCopy})
		},
		OnRequest: func(peer identity.PublicKey, method string, params []byte) (interface{}, *frame.ResponseError) {
			n.metrics.FramesReceived.WithLabelValues(frame.TypeRequest.String()).Inc()
			return n.handleRequest(peer, method, params)
		},
		OnEvent: func(peer identity.PublicKey, payload []byte) {
			n.metrics.FramesReceived.WithLabelValues(frame.TypeEvent.String()).Inc()
			n.emit(Event{Kind: EventMessage, Peer: peer, Message: payload})
		},
		OnIntroduce: func(peer identity.PublicKey, payload []byte) {
			n.metrics.FramesReceived.WithLabelValues(frame.TypeIntroduce.String()).Inc()
			n.handleIntroduce(peer, payload)
		},
		OnProtocolError: func(peer identity.PublicKey, err error) { n.emit(Event{Kind: EventError, Peer: peer, Err: err}) },
		OnClosed:        n.handleClosed,
	})

	n.mu.Lock()
	n.sessions[remote] = sess
	n.mu.Unlock()
	n.metrics.SessionsCreated.WithLabelValues("admitted").Inc()
	n.metrics.SessionsActive.Inc()

	// Surface peer:connected before the session starts reading, so for any
	// one peer it always precedes the capabilities event. Caps stay empty
	// until the capability exchange lands.
	n.emit(Event{Kind: EventPeerConnected, Peer: remote, PeerConnected: &PeerConnectedData{
		Pubkey:       remote,
		Capabilities: sess.Capabilities(),
		ConnectedAt:  sess.ConnectedAt(),
		LastSeen:     sess.LastSeen(),
		Online:       true,
	}})

	if err := sess.Start(); err != nil {
		log.Error("failed to start peer session", logger.Error(err))
		n.mu.Lock()
		delete(n.sessions, remote)
		n.mu.Unlock()
		n.metrics.SessionsActive.Dec()
		n.emit(Event{Kind: EventPeerDisconnected, Peer: remote})
		return
	}
	log.Info("peer session admitted")
}

// handleClosed runs when a session transitions to CLOSED, however that
// happened (liveness timeout, read error, or explicit Destroy). Pending
// introductions only exist while their introducer is in the active peer
// set, so any the closed peer delivered are dropped here.
func (n *Node) handleClosed(peer identity.PublicKey) {
	peerHex := peer.Hex()

	n.mu.Lock()
	_, existed := n.sessions[peer]
	delete(n.sessions, peer)
	for target, intro := range n.pendingIntroductions {
		if intro.IntroducerPubkey == peerHex {
			delete(n.pendingIntroductions, target)
			delete(n.introductionTrustPath, target)
		}
	}
	n.mu.Unlock()

	if !existed {
		return
	}
	n.metrics.SessionsActive.Dec()
	n.metrics.SessionsClosed.Inc()
	n.emit(Event{Kind: EventPeerDisconnected, Peer: peer})
}

// handleRequest is the session.Handlers.OnRequest callback: it dispatches
// to the method registry and turns the result into a RESPONSE payload.
func (n *Node) handleRequest(peer identity.PublicKey, method string, params []byte) (interface{}, *frame.ResponseError) {
	n.mu.Lock()
	h, ok := n.methods[method]
	n.mu.Unlock()
	if !ok {
		return nil, &frame.ResponseError{Code: frame.ErrCodeMethodNotFound, Message: fmt.Sprintf("no handler registered for method %q", method)}
	}

	result, err := h(peer, params)
	if err != nil {
		return nil, &frame.ResponseError{Code: frame.ErrCodeHandlerError, Message: err.Error()}
	}
	return result, nil
}
