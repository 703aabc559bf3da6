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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aronia-net/aronia/frame"
	"github.com/aronia-net/aronia/identity"
	"github.com/aronia-net/aronia/internal/aerrors"
	"github.com/aronia-net/aronia/session"
)

// Send delivers message as a fire-and-forget EVENT frame to peer. It fails
// with a PeerOffline error when peer has no active session.
func (n *Node) Send(peer identity.PublicKey, message interface{}) error {
	sess, ok := n.activeSession(peer)
	if !ok {
		return aerrors.Of(aerrors.KindPeerOffline)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("node: marshal event payload: %w", err)
	}
	if err := sess.Send(frame.TypeEvent, 0, payload); err != nil {
		n.countBackpressure(err)
		return err
	}
	n.metrics.FramesSent.WithLabelValues(frame.TypeEvent.String()).Inc()
	return nil
}

// countBackpressure increments BackpressureTimeouts when err is a write
// that was parked past the session's write timeout.
func (n *Node) countBackpressure(err error) {
	if errors.Is(err, aerrors.Of(aerrors.KindBackpressure)) {
		n.metrics.BackpressureTimeouts.Inc()
	}
}

// Request performs an RPC call to peer and waits for the response, the
// deadline, or session teardown, whichever comes first. A zero timeout
// uses the session's configured default.
func (n *Node) Request(peer identity.PublicKey, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	sess, ok := n.activeSession(peer)
	if !ok {
		return nil, aerrors.Of(aerrors.KindPeerOffline)
	}

	start := time.Now()
	result, err := sess.Request(method, params, timeout)
	if err != nil {
		if errors.Is(err, aerrors.Of(aerrors.KindRequestTimeout)) {
			n.metrics.RequestsTimedOut.Inc()
		}
		return nil, err
	}
	n.metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return result, nil
}

// BroadcastResult reports how many active sessions a broadcast reached.
type BroadcastResult struct {
	Sent    int
	Offline int
}

// Broadcast sends message as an EVENT frame to every active session,
// best-effort per peer, and reports how many writes completed versus
// failed. Delivery order across peers is unspecified.
func (n *Node) Broadcast(message interface{}) BroadcastResult {
	n.mu.Lock()
	snapshot := make([]*session.PeerSession, 0, len(n.sessions))
	for _, s := range n.sessions {
		snapshot = append(snapshot, s)
	}
	n.mu.Unlock()

	var result BroadcastResult
	payload, err := json.Marshal(message)
	if err != nil {
		return BroadcastResult{Offline: len(snapshot)}
	}

	for _, sess := range snapshot {
		if err := sess.Send(frame.TypeEvent, 0, payload); err != nil {
			n.countBackpressure(err)
			result.Offline++
			continue
		}
		n.metrics.FramesSent.WithLabelValues(frame.TypeEvent.String()).Inc()
		result.Sent++
	}
	return result
}
