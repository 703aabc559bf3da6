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
	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
	"github.com/aronia-net/aronia/session"
	"github.com/aronia-net/aronia/trust"
)

// Introduce vouches for targetPubkey to peerR. If we are forwarding an
// introduction we previously accepted for target (trustPath already
// recorded), the existing chain is carried forward with our own key
// appended; otherwise a fresh trustPath of just our key is used. The
// record is always (re-)signed with our own key and its introducerPubkey
// always names us, the node actually handing the frame to peerR: the
// receiver checks introducerPubkey against the delivering peer, so naming
// the original signer instead would never validate past the first hop.
func (n *Node) Introduce(peerR, targetPubkey identity.PublicKey, alias string, capabilities []string, message string) error {
	sess, ok := n.activeSession(peerR)
	if !ok {
		return aerrors.Of(aerrors.KindPeerOffline)
	}

	n.mu.Lock()
	priorPath := append([]string(nil), n.introductionTrustPath[targetPubkey]...)
	n.mu.Unlock()

	trustPath := []string{n.self.PublicKey().Hex()}
	if len(priorPath) > 0 {
		trustPath = append(append([]string(nil), priorPath...), n.self.PublicKey().Hex())
	}

	intro := trust.Build(n.self, targetPubkey, alias, capabilities, message, trustPath)
	if err := trust.Sign(n.self, intro); err != nil {
		return err
	}

	payload, err := intro.ToFramePayload()
	if err != nil {
		return err
	}
	if err := sess.Send(frame.TypeIntroduce, 0, payload); err != nil {
		n.countBackpressure(err)
		return err
	}
	n.metrics.FramesSent.WithLabelValues(frame.TypeIntroduce.String()).Inc()
	return nil
}

// handleIntroduce is the session.Handlers.OnIntroduce callback: validate,
// then either auto-accept or hold as pending.
func (n *Node) handleIntroduce(introducer identity.PublicKey, payload []byte) {
	intro, err := trust.FromPayload(payload)
	if err != nil {
		n.emit(Event{Kind: EventError, Peer: introducer, Err: err})
		return
	}

	target, parseErr := identity.ParsePublicKeyHex(intro.Pubkey)
	if parseErr != nil {
		n.emit(Event{Kind: EventError, Peer: introducer, Err: parseErr})
		return
	}

	if err := trust.Validate(intro, introducer, n.self.PublicKey(), n.trustConfig()); err != nil {
		n.metrics.IntroductionsProcessed.WithLabelValues("rejected").Inc()
		n.emit(Event{Kind: EventIntroductionRejected, Peer: target, IntroductionRejected: &ReasonData{Pubkey: target, Reason: err.Error()}})
		return
	}

	n.mu.Lock()
	_, alreadyWhitelisted := n.whitelist[target]
	n.mu.Unlock()
	if alreadyWhitelisted {
		// Already-whitelisted targets are dropped silently, never surfaced.
		return
	}

	if n.autoAcceptEligible(introducer, intro) {
		n.acceptIntroduction(target, introducer, intro.TrustPath)
		return
	}

	n.mu.Lock()
	n.pendingIntroductions[target] = intro
	n.introductionTrustPath[target] = append([]string(nil), intro.TrustPath...)
	n.mu.Unlock()

	n.metrics.IntroductionsProcessed.WithLabelValues("pending").Inc()
	n.emit(Event{Kind: EventIntroductionReceived, Peer: target, IntroductionReceived: intro})
}

// autoAcceptEligible: the introducer must be in the auto-accept set and
// the introduction's declared capability tokens must share nothing with
// the tokens that require manual approval.
func (n *Node) autoAcceptEligible(introducer identity.PublicKey, intro *trust.Introduction) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, trusted := n.autoAcceptFrom[introducer]; !trusted {
		return false
	}
	for _, c := range intro.Capabilities {
		if _, requiresApproval := n.requireApprovalFor[c]; requiresApproval {
			return false
		}
	}
	return true
}

// AcceptIntroduction applies the accept procedure to a pending
// introduction, for manual (non-auto) acceptance.
func (n *Node) AcceptIntroduction(target identity.PublicKey) error {
	n.mu.Lock()
	intro, ok := n.pendingIntroductions[target]
	n.mu.Unlock()
	if !ok {
		return aerrors.New(aerrors.KindIntroduction, "no pending introduction for that pubkey")
	}

	introducer, err := identity.ParsePublicKeyHex(intro.IntroducerPubkey)
	if err != nil {
		return err
	}
	n.acceptIntroduction(target, introducer, intro.TrustPath)
	return nil
}

// acceptIntroduction whitelists the introduced pubkey, clears the pending
// entry, surfaces introduction:accepted, and surfaces peer:pending if no
// session exists yet.
func (n *Node) acceptIntroduction(target, introducer identity.PublicKey, trustPath []string) {
	n.mu.Lock()
	n.whitelist[target] = struct{}{}
	delete(n.pendingIntroductions, target)
	n.introductionTrustPath[target] = append([]string(nil), trustPath...)
	whitelistSize := len(n.whitelist)
	_, connected := n.sessions[target]
	n.mu.Unlock()

	n.metrics.WhitelistSize.Set(float64(whitelistSize))
	n.metrics.IntroductionsProcessed.WithLabelValues("accepted").Inc()
	n.emit(Event{Kind: EventIntroductionAccepted, Peer: target, IntroductionAccepted: &IntroductionAcceptedData{Pubkey: target, Introducer: introducer}})

	if !connected {
		// The target is not immediately reachable. Dialing it is not this
		// core's job; the swarm collaborator and application layer own
		// redial policy.
		n.emit(Event{Kind: EventPeerPending, Peer: target})
	}
}

// RejectIntroduction removes the pending entry and surfaces
// introduction:rejected.
func (n *Node) RejectIntroduction(target identity.PublicKey, reason string) {
	n.mu.Lock()
	delete(n.pendingIntroductions, target)
	delete(n.introductionTrustPath, target)
	n.mu.Unlock()

	if reason == "" {
		reason = "rejected by application"
	}
	n.metrics.IntroductionsProcessed.WithLabelValues("rejected").Inc()
	n.emit(Event{Kind: EventIntroductionRejected, Peer: target, IntroductionRejected: &ReasonData{Pubkey: target, Reason: reason}})
}

// SetTrust adds or removes peer from the auto-accept set.
func (n *Node) SetTrust(peer identity.PublicKey, trusted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if trusted {
		n.autoAcceptFrom[peer] = struct{}{}
	} else {
		delete(n.autoAcceptFrom, peer)
	}
}

// RevokeTrust removes peer from the auto-accept set and the whitelist. If
// cascade is true, every peer whose recorded trustPath contains peer also
// loses its whitelist/auto-accept entry and has its session torn down.
// Neither mode forwards a revocation to still-connected neighbors; revoking
// on another node's behalf would need trust semantics the wire protocol
// does not define.
func (n *Node) RevokeTrust(peer identity.PublicKey, cascade bool) {
	peerHex := peer.Hex()

	n.mu.Lock()
	delete(n.autoAcceptFrom, peer)
	delete(n.whitelist, peer)

	var toTeardown []*session.PeerSession
	if cascade {
		for pk, path := range n.introductionTrustPath {
			if !pathContains(path, peerHex) {
				continue
			}
			delete(n.whitelist, pk)
			delete(n.autoAcceptFrom, pk)
			delete(n.introductionTrustPath, pk)
			if s, ok := n.sessions[pk]; ok {
				toTeardown = append(toTeardown, s)
			}
		}
	}
	whitelistSize := len(n.whitelist)
	n.mu.Unlock()

	n.metrics.WhitelistSize.Set(float64(whitelistSize))
	for _, s := range toTeardown {
		s.Destroy()
	}
}

func pathContains(path []string, hexKey string) bool {
	for _, p := range path {
		if p == hexKey {
			return true
		}
	}
	return false
}
